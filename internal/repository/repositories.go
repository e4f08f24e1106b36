// Package repository holds the SQL behind every persisted type.
package repository

import (
	"github.com/deppfellow/itembatch/internal/server"
)

// Repositories groups every repository so services receive one value.
type Repositories struct {
	Items *ItemRepository
}

func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Items: NewItemRepository(s.DB.Pool),
	}
}
