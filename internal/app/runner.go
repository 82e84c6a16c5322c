package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/metrics"
	"github.com/rovshanmuradov/xtbhelper/internal/monitor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Watch runs the live valuation loop until SIGINT/SIGTERM, ctx cancellation
// or a quit command on in. Enter forces a refresh and 'r' reloads the
// positions file.
func (a *App) Watch(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	positions, err := a.LoadPositions()
	if err != nil {
		return err
	}

	loop := monitor.NewLoop(a.logger, monitor.LoopConfig{
		Interval:  a.cfg.Refresh(),
		Source:    a.quotes,
		Renderers: a.renderers(out, true),
		Events:    a.bus,
		Metrics:   a.metrics,
	})
	loop.SetPositions(positions)

	g, gctx := errgroup.WithContext(ctx)
	loop.Start(gctx)

	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(gctx) })
	}

	input := NewInputHandler(a.logger)
	input.RegisterCommand("", func() error {
		if !loop.Trigger() {
			a.logger.Debug("Refresh already in progress", zap.String("state", loop.State().String()))
		}
		return nil
	})
	input.RegisterCommand("r", func() error {
		positions, err := a.LoadPositions()
		if err != nil {
			return err
		}
		loop.SetPositions(positions)
		loop.Trigger()
		return nil
	})
	input.RegisterCommand("q", func() error { return errQuit })
	g.Go(func() error { return input.Run(gctx, in) })

	a.logger.Info("Watching portfolio",
		zap.Int("positions", len(positions)),
		zap.Duration("interval", a.cfg.Refresh()))

	err = g.Wait()
	loop.Stop()
	loop.Wait()

	if errors.Is(err, errQuit) {
		err = nil
	}
	a.logger.Info("Watch stopped")
	return err
}

// serveMetrics exposes the Prometheus registry until ctx ends.
func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("Serving metrics", zap.String("addr", a.cfg.MetricsAddr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
