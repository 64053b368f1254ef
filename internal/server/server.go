// Пакет server — HTTP-сервер rtf-converter с graceful shutdown.
// Без TLS: TLS termination выполняется на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/alice"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/routes"
	"github.com/bigkaa/goartstore/rtf-converter/internal/config"
)

// Server — HTTP-сервер rtf-converter.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и цепочкой middleware.
// middlewares применяются в порядке передачи: первый — самый внешний.
func New(cfg *config.Config, logger *slog.Logger, handler routes.ServerInterface, middlewares ...func(http.Handler) http.Handler) *Server {
	router := chi.NewRouter()
	routes.HandlerFromMux(handler, router)

	chain := alice.New()
	for _, mw := range middlewares {
		chain = chain.Append(mw)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           chain.Then(router),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// Handler возвращает корневой обработчик с middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run запускает сервер и блокируется до отмены ctx или ошибки сервера.
// После отмены ctx выполняется graceful shutdown с RC_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("Выполняется graceful shutdown...")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ошибка при graceful shutdown: %w", err)
		}
		s.logger.Info("HTTP-сервер остановлен")
		return nil
	})

	return g.Wait()
}
