// Package model holds the domain types shared by the repository, service
// and handler layers.
package model

import "errors"

// Item statuses. The batch engine only ever moves an item to StatusProcessed.
const (
	StatusNew       = "NEW"
	StatusProcessed = "PROCESSED"
)

// Item is the persisted record handled by the CRUD endpoints and the batch
// processing engine.
//
// ID is assigned by the store on first save. A zero ID means "not yet saved".
type Item struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Status      string `json:"status" db:"status"`
	Email       string `json:"email" db:"email"`
}

// IsProcessed reports whether the batch engine already handled this item.
func (i *Item) IsProcessed() bool {
	return i.Status == StatusProcessed
}

// ErrItemNotFound is returned by stores when no item has the requested id.
var ErrItemNotFound = errors.New("item not found")
