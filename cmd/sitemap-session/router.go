package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/internal/session"
)

// snapshotTimeout bounds how long /debug/session waits for the session thread.
const snapshotTimeout = 2 * time.Second

// newRouter serves metrics and a JSON view of the session. The session is
// read on its own thread.
func newRouter(collector *observability.SessionCollector, exec eventloop.Executor, app *session.App) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(collector.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	debug := r.Group("/debug")
	{
		debug.GET("/session", func(c *gin.Context) {
			snaps := make(chan session.Snapshot, 1)
			exec.Post(func() { snaps <- app.Snapshot() })
			select {
			case snap := <-snaps:
				c.JSON(http.StatusOK, snap)
			case <-c.Request.Context().Done():
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
			case <-time.After(snapshotTimeout):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session thread busy"})
			}
		})
	}
	return r
}
