package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/FoxRefire/SpiceDL/internal/config"
	"github.com/FoxRefire/SpiceDL/internal/controller/api/handlers"
	"github.com/FoxRefire/SpiceDL/internal/core/download"
)

type RouterConfig struct {
	Orchestrator *download.Orchestrator
	Store        *config.Store
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	handlers.InitErrors()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE"},
	}))

	e.GET("/health", handlers.Health)

	v1 := e.Group("/api/v1")
	conf := huma.DefaultConfig("SpiceDL API", "1.0.0")
	conf.Servers = []*huma.Server{{URL: "/api/v1"}}
	conf.Info.Description = "Job-tracking wrapper around the spotDL downloader"

	api := humaecho.NewWithGroup(e, v1, conf)

	dl := handlers.NewDownloadsHandler(cfg.Orchestrator)
	huma.Register(api, huma.Operation{
		OperationID:   "downloads-add",
		Method:        http.MethodPost,
		Path:          "/downloads",
		Summary:       "Start a download from a Spotify URL",
		Tags:          []string{"Downloads"},
		DefaultStatus: http.StatusCreated,
	}, dl.Add)

	huma.Register(api, huma.Operation{
		OperationID: "downloads-list",
		Method:      http.MethodGet,
		Path:        "/downloads",
		Summary:     "List all downloads",
		Tags:        []string{"Downloads"},
	}, dl.List)

	huma.Register(api, huma.Operation{
		OperationID: "downloads-get",
		Method:      http.MethodGet,
		Path:        "/downloads/{id}",
		Summary:     "Get download status",
		Tags:        []string{"Downloads"},
	}, dl.Get)

	huma.Register(api, huma.Operation{
		OperationID: "downloads-cancel",
		Method:      http.MethodDelete,
		Path:        "/downloads/{id}",
		Summary:     "Cancel a running download",
		Tags:        []string{"Downloads"},
	}, dl.Cancel)

	settings := handlers.NewSettingsHandler(cfg.Store, cfg.Orchestrator)
	huma.Register(api, huma.Operation{
		OperationID: "settings-list",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "List all settings",
		Tags:        []string{"Settings"},
	}, settings.List)

	huma.Register(api, huma.Operation{
		OperationID: "settings-get",
		Method:      http.MethodGet,
		Path:        "/settings/{key}",
		Summary:     "Get a setting",
		Tags:        []string{"Settings"},
	}, settings.Get)

	huma.Register(api, huma.Operation{
		OperationID: "settings-update",
		Method:      http.MethodPatch,
		Path:        "/settings/{key}",
		Summary:     "Update a setting",
		Tags:        []string{"Settings"},
	}, settings.Update)
}
