package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectionConfig agrupa os parâmetros de conexão de um store.
type ConnectionConfig struct {
	Host           string
	Port           string
	DBName         string
	Username       string
	Password       string
	MaxConnections int
}

func NewPostgresClient(cfg ConnectionConfig) (*pgxpool.Pool, error) {
	dbConfig := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	config, err := pgxpool.ParseConfig(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	config.MaxConns = int32(cfg.MaxConnections) //nolint:all
	config.MinConns = 1

	// Idle timeout - economiza recursos
	config.MaxConnIdleTime = 5 * time.Minute

	// Lifetime das conexões - evita problemas de timeout do PostgreSQL
	config.MaxConnLifetime = 30 * time.Minute

	config.HealthCheckPeriod = 1 * time.Minute

	config.ConnConfig.RuntimeParams = map[string]string{
		"timezone":          "UTC",
		"statement_timeout": "30s",
		"lock_timeout":      "10s",
		// Um merge abre transações nos dois stores; a do buffer fica ociosa enquanto o main trabalha.
		"idle_in_transaction_session_timeout": "120s",
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	return pool, nil
}

// IsForeignKeyViolation identifica aresta apontando para vértice inexistente.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23503" {
			return true
		}
	}

	return false
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// Ela constrói um payload JSON para ser usado com o operador @> do PostgreSQL.
// Gera algo como {"entity.qualifiedName": "db.schema.table"} quando path não tem pontos
// de aninhamento, ou objetos aninhados para caminhos "a/b/c".
// Essa estrutura é importante para usarmos o index GIN em consultas JSONB.
func BuildSearchJSON(path string, value interface{}) (string, error) {
	keys := strings.Split(path, "/")
	jsonMap := map[string]interface{}{keys[len(keys)-1]: value}

	for i := len(keys) - 2; i >= 0; i-- {
		jsonMap = map[string]interface{}{keys[i]: jsonMap}
	}

	bytes, err := json.Marshal(jsonMap)

	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
