package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/orgtree/pkg/adapters/http"
	"github.com/aretw0/orgtree/pkg/adapters/mcp"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

// Serve exposes the chart over HTTP until ctx is done.
// With watch, source changes reload the chart and are pushed to /events subscribers.
func (a *App) Serve(ctx context.Context, addr string, watch bool) error {
	if a.Metrics == nil {
		a.Metrics = observability.NewMetrics()
	}
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}

	srv, err := httpAdapter.NewServer(eng,
		httpAdapter.WithMetrics(a.Metrics),
		httpAdapter.WithLogger(a.Logger),
		httpAdapter.WithAnalyzer(analyzer),
	)
	if err != nil {
		return err
	}
	handler, err := srv.Handler()
	if err != nil {
		return err
	}

	if watch {
		go func() {
			err := eng.AutoReload(ctx, func(diff *domain.ChartDiff, err error) {
				if err != nil {
					a.Logger.Error("reload failed", "err", err)
					return
				}
				srv.Publish(diff)
			})
			if err != nil {
				a.Logger.Warn("hot reload disabled", "err", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", "address", addr, "source", a.Opts.Config.Source)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.Logger.Info("shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		return nil
	}
}

// ServeMCP exposes the chart as MCP tools over stdio or SSE.
func (a *App) ServeMCP(ctx context.Context, transport string, port int) error {
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(eng,
		mcp.WithLogger(a.Logger),
		mcp.WithMetrics(a.Metrics),
		mcp.WithAnalyzer(analyzer),
	)

	switch transport {
	case "stdio":
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, port)
	default:
		return fmt.Errorf("unknown transport %q (expected stdio or sse)", transport)
	}
}
