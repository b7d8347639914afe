// Package http wires the externally-facing entry points: the answer
// webhook, the media-stream socket, and the call API.
package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkeye/Bridge/internal/app"
	"github.com/dkeye/Bridge/internal/config"
	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/metrics"
)

// Deps aggregates everything the handlers need; constructed once in
// main and passed down so tests can swap fakes.
type Deps struct {
	Config    *config.Config
	Registry  *app.Registry
	Connector core.RoomConnector
	Dialer    core.Dialer
	CallLog   *app.CallLog
	Metrics   *metrics.Metrics
}

func SetupRouter(ctx context.Context, deps Deps) *gin.Engine {
	if deps.Config.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if deps.Config.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &handlers{deps: deps}

	// short alias kept for platform configurations that use it
	r.POST("/answer", h.answer)
	r.POST("/plivo/answer", h.answer)
	r.GET("/plivo/media-stream", func(c *gin.Context) {
		h.mediaStream(ctx, c)
	})

	api := r.Group("/api")
	api.POST("/calls", h.makeCall)
	api.GET("/calls/:id", h.callMetadata)
	api.GET("/sessions", h.listSessions)

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
