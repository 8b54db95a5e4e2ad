package cache

import "errors"

var (
	// Cold tier errors
	ErrColdStoreUnavailable = errors.New("cold store unavailable")
	ErrColdMiss             = errors.New("cold store miss")
	ErrSerialization        = errors.New("malformed persisted vector data")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// Lifecycle errors
	ErrCacheClosed = errors.New("cache is closed")
)
