package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bomflow/internal/handlers"
	"bomflow/internal/observability"
	"bomflow/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Run the bomflow HTTP server",
	RunE:    serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Monitoring.Tracing)
	if err != nil {
		log.Warnf("tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	var hub *services.NotificationHub
	opts := appOptions{}
	if cfg.Notifications.WebSocket.Enabled {
		hub = services.NewNotificationHub(cfg.Notifications.WebSocket, log)
		go hub.Run(ctx)
		opts.notifier = hub
	}
	observer, gatherer := prometheusObserver(cfg)
	opts.observer = observer

	a, err := newApp(cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.Host != "localhost" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		Config:   cfg,
		DB:       a.db,
		Triggers: a.triggers,
		Tasks:    a.tasks,
		Hub:      hub,
		Gatherer: gatherer,
		Version:  Version,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if hub != nil {
		<-hub.Done()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Errorf("tracing shutdown: %v", err)
	}
	log.Info("Server exited")
	return nil
}
