package handler

import (
	"time"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
)

// CreateItemRequest represents a request to register an asset or inventory item.
// Category is ignored for assets.
type CreateItemRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category"`
	Quantity    *int64 `json:"quantity"`
	Description string `json:"description"`
}

// ApplyDeltaRequest represents a request to add (or, when negative, remove) quantity
type ApplyDeltaRequest struct {
	Name          string `json:"name" binding:"required"`
	QuantityToAdd *int64 `json:"quantityToAdd" binding:"required"`
	Description   string `json:"description"`
}

// ListItemsQuery narrows a listing to one category
type ListItemsQuery struct {
	Category string `form:"category"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// EntryResponse represents one audit entry in API responses
type EntryResponse struct {
	QuantityAdded   int64  `json:"quantityAdded"`
	UpdatedQuantity int64  `json:"updatedQuantity"`
	Description     string `json:"description"`
	RecordedAt      string `json:"recordedAt"`
	RecordedBy      string `json:"recordedBy,omitempty"`
}

// ItemResponse represents an asset or inventory item in API responses
type ItemResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Quantity  int64           `json:"quantity"`
	History   []EntryResponse `json:"history"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

// EventResponse represents an archived ledger event in API responses
type EventResponse struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	Sequence   int           `json:"sequence"`
	Entry      EntryResponse `json:"entry"`
	Quantity   int64         `json:"quantity"`
	OccurredAt string        `json:"occurred_at"`
}

func mapEntryToResponse(e ledger.Entry) EntryResponse {
	return EntryResponse{
		QuantityAdded:   e.QuantityAdded,
		UpdatedQuantity: e.UpdatedQuantity,
		Description:     e.Description,
		RecordedAt:      e.RecordedAt.Format(time.RFC3339Nano),
		RecordedBy:      e.RecordedBy,
	}
}

// mapItemToResponse maps an item entity to its response DTO, history oldest first
func mapItemToResponse(item *ledger.Item) ItemResponse {
	history := make([]EntryResponse, 0, len(item.History))
	for _, e := range item.History {
		history = append(history, mapEntryToResponse(e))
	}
	return ItemResponse{
		ID:        item.ID.String(),
		Kind:      string(item.Kind),
		Name:      item.Name,
		Category:  item.Category,
		Quantity:  item.Quantity,
		History:   history,
		CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: item.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapEventToResponse(ev *event.LedgerEvent) EventResponse {
	return EventResponse{
		EventID:    ev.EventID.String(),
		Type:       string(ev.Type),
		Sequence:   ev.Sequence,
		Entry:      mapEntryToResponse(ev.Entry),
		Quantity:   ev.Quantity,
		OccurredAt: ev.OccurredAt.Format(time.RFC3339Nano),
	}
}
