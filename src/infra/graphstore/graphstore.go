package graphstore

import (
	"context"
	"fmt"
	"log/slog"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/helper/env"
	"lineageconsolidator/src/infra/memgraph"
	"lineageconsolidator/src/infra/postgres"
	"lineageconsolidator/src/repositories"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	BufferGraphName = "buffer"
	MainGraphName   = "main"
)

// TwinGraph agrupa os dois grafos usados pelos comandos.
type TwinGraph struct {
	Buffer domain.PropertyGraph
	Main   domain.PropertyGraph
	client *postgres.TwinGraphClient
}

func (t *TwinGraph) Close() {
	if t.client != nil {
		t.client.Close()
	}
}

// NewTwinGraphFromEnv escolhe o backend por GRAPH_STORE. Com postgres, DB_RUN_MIGRATIONS aplica
// o schema nos dois bancos antes de devolver.
func NewTwinGraphFromEnv(ctx context.Context, logger *slog.Logger) (*TwinGraph, error) {
	store := env.GetString("GRAPH_STORE", StorePostgres)

	switch store {
	case StoreMemory:
		logger.Warn("Using in-memory graph store, data is lost on restart")
		return &TwinGraph{
			Buffer: memgraph.New(BufferGraphName),
			Main:   memgraph.New(MainGraphName),
		}, nil
	case StorePostgres:
		return newPostgresTwinGraph(ctx, logger)
	default:
		return nil, fmt.Errorf("unknown GRAPH_STORE %q", store)
	}
}

func newPostgresTwinGraph(ctx context.Context, logger *slog.Logger) (*TwinGraph, error) {
	maxConnections := env.GetInt("DB_MAX_POOL_CONNECTIONS", 25)

	client, err := postgres.NewTwinGraphClient(
		connectionConfigFromEnv("BUFFER_DB", maxConnections),
		connectionConfigFromEnv("MAIN_DB", maxConnections),
	)
	if err != nil {
		return nil, err
	}

	if env.GetBool("DB_RUN_MIGRATIONS", false) {
		if err := postgres.RunMigrations(ctx, client.GetBufferPool()); err != nil {
			client.Close()
			return nil, fmt.Errorf("buffer graph migrations: %w", err)
		}
		if err := postgres.RunMigrations(ctx, client.GetMainPool()); err != nil {
			client.Close()
			return nil, fmt.Errorf("main graph migrations: %w", err)
		}
		logger.Info("Graph store migrations applied")
	}

	return &TwinGraph{
		Buffer: repositories.NewPostgresGraphStore(BufferGraphName, client.GetBufferPool()),
		Main:   repositories.NewPostgresGraphStore(MainGraphName, client.GetMainPool()),
		client: client,
	}, nil
}

func connectionConfigFromEnv(prefix string, maxConnections int) postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		Host:           env.MustGetString(prefix + "_HOST"),
		Port:           env.GetString(prefix+"_PORT", "5432"),
		DBName:         env.MustGetString(prefix + "_NAME"),
		Username:       env.MustGetString(prefix + "_USER"),
		Password:       env.MustGetString(prefix + "_PASSWORD"),
		MaxConnections: maxConnections,
	}
}
