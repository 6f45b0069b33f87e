package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phed-ledger/internal/api_gateway/service"
	"github.com/phed-ledger/internal/domain/ledger"
)

// LedgerHandler serves the item endpoints of one kind. Assets and inventory
// share the handler code and differ only in kind.
type LedgerHandler struct {
	kind          ledger.Kind
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a handler bound to kind
func NewLedgerHandler(logger *slog.Logger, kind ledger.Kind, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		kind:          kind,
		ledgerService: ledgerService,
		logger:        logger.With("kind", kind),
	}
}

// Create registers a new item with its baseline history entry
func (h *LedgerHandler) Create(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.ledgerService.CreateItem(c.Request.Context(), service.CreateItemInput{
		Kind:        h.kind,
		Name:        req.Name,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, "create item", err)
		return
	}

	RespondCreated(c, mapItemToResponse(item))
}

// ApplyDelta appends a quantity adjustment and returns the item with its full history
func (h *LedgerHandler) ApplyDelta(c *gin.Context) {
	var req ApplyDeltaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.ledgerService.ApplyDelta(c.Request.Context(), service.ApplyDeltaInput{
		Kind:        h.kind,
		Name:        req.Name,
		Delta:       *req.QuantityToAdd,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, "apply delta", err)
		return
	}

	RespondOK(c, mapItemToResponse(item))
}

// List returns every item of the kind; an empty ledger yields an empty array
func (h *LedgerHandler) List(c *gin.Context) {
	var query ListItemsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	items, err := h.ledgerService.ListItems(c.Request.Context(), h.kind, query.Category)
	if err != nil {
		h.respondError(c, "list items", err)
		return
	}

	response := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, mapItemToResponse(item))
	}
	RespondOK(c, response)
}

// Get returns one item by case-insensitive name
func (h *LedgerHandler) Get(c *gin.Context) {
	item, err := h.ledgerService.GetItem(c.Request.Context(), h.kind, c.Param("name"))
	if err != nil {
		h.respondError(c, "get item", err)
		return
	}

	RespondOK(c, mapItemToResponse(item))
}

// ListEvents returns a page of the archived ledger events of one item
func (h *LedgerHandler) ListEvents(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	events, total, err := h.ledgerService.ListEvents(c.Request.Context(), h.kind, c.Param("name"), pagination.Page, pagination.PerPage)
	if err != nil {
		h.respondError(c, "list events", err)
		return
	}

	response := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		response = append(response, mapEventToResponse(ev))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, total)
}

// respondError maps ledger errors onto HTTP statuses
func (h *LedgerHandler) respondError(c *gin.Context, op string, err error) {
	var invalid ledger.ErrInvalidArgument
	var duplicate ledger.ErrDuplicateItem
	var notFound ledger.ErrItemNotFound

	switch {
	case errors.As(err, &invalid):
		RespondBadRequest(c, invalid.Error())
	case errors.As(err, &duplicate):
		h.logger.Warn("Duplicate item name", "name", duplicate.Name)
		RespondConflict(c, duplicate.Error())
	case errors.As(err, &notFound):
		RespondNotFound(c, notFound.Error())
	case errors.Is(err, ledger.ErrConcurrentModification{}):
		h.logger.Warn("Concurrent modification not resolved", "op", op, "error", err)
		RespondConcurrencyConflict(c, "The item was modified concurrently, please retry")
	case errors.Is(err, ledger.ErrStoreUnavailable{}),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		h.logger.Error("Ledger store unavailable", "op", op, "error", err)
		RespondServiceUnavailable(c)
	default:
		h.logger.Error("Failed to "+op, "error", err)
		RespondInternalError(c)
	}
}
