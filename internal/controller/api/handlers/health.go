package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FoxRefire/SpiceDL/internal/core/spotdl"
)

// Health reports server liveness plus the availability of the external tools
// downloads depend on. Registered as a plain echo route, outside the
// versioned API.
func Health(c echo.Context) error {
	ctx := c.Request().Context()

	deps := spotdl.Dependencies(ctx)
	resp := map[string]any{
		"status":       "ok",
		"dependencies": deps,
	}
	if tool, err := spotdl.Locate(ctx); err == nil {
		if v, verr := tool.Version(ctx); verr == nil {
			resp["spotdl_version"] = v
		}
	}
	return c.JSON(http.StatusOK, resp)
}
