// Package middleware holds the echo middleware shared by every route:
// request ids, request-scoped loggers, New Relic tracing, rate limiting,
// CORS and the global error handler.
package middleware
