package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// TwinGraphClient mantém as duas conexões independentes: grafo buffer e grafo main.
// Os stores são transacionados separadamente e nunca compartilham identificadores.
type TwinGraphClient struct {
	bufferPool *pgxpool.Pool
	mainPool   *pgxpool.Pool
}

func NewTwinGraphClient(buffer ConnectionConfig, main ConnectionConfig) (*TwinGraphClient, error) {
	bufferPool, err := NewPostgresClient(buffer)
	if err != nil {
		return nil, err
	}

	mainPool, err := NewPostgresClient(main)
	if err != nil {
		bufferPool.Close()
		return nil, err
	}

	return &TwinGraphClient{
		bufferPool: bufferPool,
		mainPool:   mainPool,
	}, nil
}

func (c *TwinGraphClient) GetBufferPool() *pgxpool.Pool {
	return c.bufferPool
}

func (c *TwinGraphClient) GetMainPool() *pgxpool.Pool {
	return c.mainPool
}

func (c *TwinGraphClient) Close() {
	if c.bufferPool != nil {
		c.bufferPool.Close()
	}
	if c.mainPool != nil {
		c.mainPool.Close()
	}
}
