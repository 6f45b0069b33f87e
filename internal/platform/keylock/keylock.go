// Package keylock serialises work on the same key, either inside one process or
// across processes through Redis.
package keylock

import "context"

// Locker grants exclusive access to a key until the returned unlock is called.
// Lock returns ctx.Err() if the context ends while waiting.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
