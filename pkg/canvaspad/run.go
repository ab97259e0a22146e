package canvaspad

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/canvaspad/canvaspad/pkg/service"
)

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails. On cancellation it shuts down gracefully and flushes
// every resident page so no acknowledged change is lost.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := mux.NewRouter()

	// Collaboration endpoint: one websocket session per connected client.
	router.HandleFunc("/ws/{pageId}", service.Handler(a.registry))

	// Read-only REST surface for non-collaborating consumers.
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pages/{pageId}/components", a.handleListComponents).Methods("GET")

	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info("starting canvaspad server", "addr", addr)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		a.registry.Shutdown(shutdownCtx)
		return nil
	case err := <-serverErr:
		return err
	}
}
