package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftdrop/internal/db"
	"github.com/openmined/syftdrop/internal/version"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
	db     *sqlx.DB
}

func New(config *Config) (*Server, error) {
	sqliteDb, err := db.NewSqliteDB(db.WithPath(config.DBPath()), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	services, err := NewServices(config, sqliteDb)
	if err != nil {
		sqliteDb.Close()
		return nil, err
	}

	return &Server{
		config: config,
		svc:    services,
		db:     sqliteDb,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           SetupRoutes(config, services),
			ReadHeaderTimeout: 30 * time.Second,
		},
	}, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	slog.Info("syftdrop server start", "version", version.Version, "revision", version.Revision, "config", s.config)
	defer slog.Info("syftdrop server stop")

	if err := s.svc.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			slog.Error("http server error", "error", err)
			s.Stop(context.Background())
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("syftdrop shutdown signal")
		return s.Stop(context.WithoutCancel(ctx))
	}
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.svc.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLSEnabled() {
		slog.Info("server start https", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
