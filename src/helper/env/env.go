package env

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// GetString extracts a String value from the given environment variable
func GetString(name string, defaultValue ...string) string {
	value := os.Getenv(name)
	if value == "" && len(defaultValue) > 0 {
		value = defaultValue[0]
	}
	return value
}

// MustGetString extracts a String value from the given environment variable
// It panics if the environment variable is not present
func MustGetString(name string) string {
	value := os.Getenv(name)
	if value == "" {
		panic(fmt.Sprintf("%s can't be empty", name))
	}
	return value
}

// GetInt extracts an Int value (e.g. DB_MAX_POOL_CONNECTIONS) from the given environment variable
func GetInt(name string, defaultValue ...int) int {
	return parse(name, strconv.Atoi, defaultValue)
}

// GetBool extracts a Bool value (e.g. DB_RUN_MIGRATIONS) from the given environment variable
func GetBool(name string, defaultValue ...bool) bool {
	return parse(name, strconv.ParseBool, defaultValue)
}

// GetDuration extracts a time.Duration value (e.g. "30s", "5m") from the given environment variable
func GetDuration(name string, defaultValue ...time.Duration) time.Duration {
	return parse(name, time.ParseDuration, defaultValue)
}

// parse devolve o default quando a variável está vazia ou mal formada; sem default, o zero value.
func parse[T any](name string, parser func(string) (T, error), defaultValue []T) T {
	value, err := parser(os.Getenv(name))
	if err != nil {
		var zero T
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return zero
	}
	return value
}
