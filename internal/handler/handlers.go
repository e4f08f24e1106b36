package handler

import (
	"github.com/deppfellow/itembatch/internal/server"
	"github.com/deppfellow/itembatch/internal/service"
)

// Handlers groups every HTTP handler for the router.
type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Item    *ItemHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
		Item:    NewItemHandler(s, services.Item),
	}
}
