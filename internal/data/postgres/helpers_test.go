package postgres

import (
	"io"
	"log/slog"

	"github.com/pashagolub/pgxmock/v3"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// anyArgs matches a statement with n placeholders regardless of their values
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
