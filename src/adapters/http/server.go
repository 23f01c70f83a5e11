package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/services/buffer"
)

type LineageReader interface {
	GetLineage(ctx context.Context, nodeID string, direction domain.LineageDirection, depth int) (*domain.LineageGraph, error)
}

type LineageIngester interface {
	Ingest(ctx context.Context, event entities.LineageEvent) (buffer.IngestReport, error)
}

type SweepRunner interface {
	RunSweep(ctx context.Context) (domain.SweepReport, error)
}

// Server representa o servidor HTTP da API
type Server struct {
	logger   *slog.Logger
	server   *http.Server
	mux      *http.ServeMux
	addr     string
	lineage  LineageReader
	ingester LineageIngester
	sweeper  SweepRunner
}

// NewServer cria uma nova instância do servidor
func NewServer(
	logger *slog.Logger,
	addr string,
	lineage LineageReader,
	ingester LineageIngester,
	sweeper SweepRunner,
) *Server {
	server := &Server{
		logger:   logger,
		mux:      http.NewServeMux(),
		addr:     addr,
		lineage:  lineage,
		ingester: ingester,
		sweeper:  sweeper,
	}

	server.server = &http.Server{
		Addr:         addr,
		Handler:      server.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Leitura do grafo main
	server.mux.HandleFunc("GET /v1/lineage/{nodeId}", server.GetLineage)

	// Escrita no grafo buffer
	server.mux.HandleFunc("POST /v1/lineage/events", server.IngestLineageEvent)

	// Disparo manual do sweep
	server.mux.HandleFunc("POST /v1/consolidation/sweep", server.RunSweep)

	server.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return server
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start inicia o servidor HTTP e bloqueia até Shutdown.
func (s *Server) Start() error {
	s.logger.Info("Server started", "addr", s.addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown encerra o servidor HTTP de forma graciosa
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}
