package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client            redis.UniversalClient
	defaultTTLSeconds time.Duration
	prefix            string
}

// NewRedisClient aceita uma lista de endereços separados por vírgula; com mais de um
// endereço o cliente opera em modo cluster.
func NewRedisClient(addrs string, poolSize int, defaultTTLSeconds time.Duration) *RedisClient {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: strings.Split(addrs, ","),

		// Pool settings para alta concorrência
		PoolSize:     poolSize,
		MinIdleConns: 10,

		MaxRedirects: 3,

		// Timeouts otimizados para cache
		DialTimeout:  5 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return &RedisClient{
		client:            client,
		defaultTTLSeconds: defaultTTLSeconds,
	}
}

// WithPrefix devolve um cliente que compartilha a conexão mas isola as chaves sob o prefixo.
func (rc *RedisClient) WithPrefix(prefix string) *RedisClient {
	return &RedisClient{
		client:            rc.client,
		defaultTTLSeconds: rc.defaultTTLSeconds,
		prefix:            rc.prefix + prefix,
	}
}

func (rc *RedisClient) key(key string) string {
	return rc.prefix + key
}

func (rc *RedisClient) SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error {
	pipe := rc.client.Pipeline()

	fields := map[string]interface{}{
		"data":      cacheValue,
		"cached_at": time.Now().Unix(),
	}
	pipe.HSet(ctx, rc.key(cacheKey), fields)
	pipe.Expire(ctx, rc.key(cacheKey), rc.defaultTTLSeconds)

	// Registry: nó -> chaves de cache que dependem dele
	for _, registryKey := range registryKeys {
		pipe.SAdd(ctx, rc.key(registryKey), cacheKey)
		pipe.Expire(ctx, rc.key(registryKey), rc.defaultTTLSeconds)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (rc *RedisClient) GetKey(ctx context.Context, key string) (string, bool, error) {
	result := rc.client.HGet(ctx, rc.key(key), "data")

	if errors.Is(result.Err(), redis.Nil) {
		return "", false, nil
	}
	if result.Err() != nil {
		return "", false, result.Err()
	}

	return result.Val(), true, nil
}

// GetMultipleSetMembers lê vários registries de uma vez. Registries inexistentes voltam vazios.
func (rc *RedisClient) GetMultipleSetMembers(ctx context.Context, keys []string) (map[string][]string, error) {
	pipe := rc.client.Pipeline()

	commands := make(map[string]*redis.StringSliceCmd, len(keys))
	for _, key := range keys {
		commands[key] = pipe.SMembers(ctx, rc.key(key))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	result := make(map[string][]string, len(keys))
	for key, cmd := range commands {
		members, err := cmd.Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		result[key] = members
	}

	return result, nil
}

// InvalidateKeys apaga uma chave por vez: em cluster as chaves caem em slots diferentes.
func (rc *RedisClient) InvalidateKeys(ctx context.Context, keys []string) error {
	var failures []string

	for _, key := range keys {
		if err := rc.client.Del(ctx, rc.key(key)).Err(); err != nil {
			failures = append(failures, fmt.Sprintf("key %s: %v", key, err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("invalidation errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

// FlushByPrefix remove todas as chaves sob o prefixo do cliente. Usado nos testes.
func (rc *RedisClient) FlushByPrefix(ctx context.Context) error {
	if rc.prefix == "" {
		return errors.New("refusing to flush without prefix")
	}

	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}
