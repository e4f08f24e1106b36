// Package router builds the echo instance: global middleware, the error
// handler and every route.
package router

import (
	"github.com/deppfellow/itembatch/internal/handler"
	"github.com/deppfellow/itembatch/internal/middleware"
	"github.com/deppfellow/itembatch/internal/server"
	"github.com/labstack/echo/v4"
)

// NewRouter wires middleware in order: rate limiting and CORS first, then
// request ids, tracing, the request logger and panic recovery.
func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	mw := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = mw.Global.GlobalErrorHandler

	router.Use(
		mw.RateLimit.Limit(),
		mw.Global.CORS(),
		mw.Global.Secure(),
		middleware.RequestID(),
		mw.Tracing.NewRelicMiddleware(),
		mw.Tracing.EnhanceTracing(),
		mw.ContextEnhancer.EnhanceContext(),
		mw.Global.RequestLogger(),
		mw.Global.Recover(),
	)

	registerSystemRoutes(router, h)

	api := router.Group("/api")
	handler.RegisterItemRoutes(api.Group("/items"), h.Item)

	return router
}
