// Package api exposes the approval workflow over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/presale/internal/approval"
	"github.com/zulandar/presale/internal/sweeper"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service *approval.Service
	// Sweeper is optional; without it POST /api/sweeps is not served.
	Sweeper *sweeper.Sweeper
	Port    int
	Out     io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("api: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.Service, opts.Sweeper)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *approval.Service, sw *sweeper.Sweeper) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, &handlers{svc: svc, sweeper: sw})
	return router
}
