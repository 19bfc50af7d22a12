package server

import (
	"github.com/labstack/echo/v4"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/platform/correlation"
)

// correlationMiddleware stamps each request context with a fresh
// correlation id so every log line for the request can be tied together.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
