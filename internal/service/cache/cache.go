package cache

import "time"

// BytesCache stores opaque rendered payloads with a TTL. It backs the API
// response cache and the longform report; implementations may share a Redis
// connection with the scheduler state store.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
