// Package cache wraps an embedder with a Redis read-through cache. Query
// embeddings repeat heavily in practice (the same clinical question asked
// across sessions), and embedding calls are the slowest step before search.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
	"github.com/thomassleeman/therapy-app-sub000/retrieval"
)

// Config holds Redis cache configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Embedder is a caching wrapper around another embedder. Cache failures are
// logged and ignored; the wrapped embedder is the source of truth.
type Embedder struct {
	inner  retrieval.Embedder
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps inner with a Redis cache.
func New(inner retrieval.Embedder, cfg Config) *Embedder {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "therapy-kb:embed:"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Embedder{
		inner: inner,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logging.WithComponent("embedder-cache"),
	}
}

// Embed returns the cached vector for text when present, otherwise embeds and
// stores it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	data, err := e.client.Get(ctx, key).Bytes()
	if err == nil {
		if vec, decErr := decodeVector(data); decErr == nil {
			return vec, nil
		}
		// Stale or corrupt entry, fall through and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		e.logger.Warn("embedding cache read failed", "error", err)
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.client.Set(ctx, key, encodeVector(vec), e.ttl).Err(); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

// Close releases the Redis connection.
func (e *Embedder) Close() error {
	return e.client.Close()
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.prefix + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, errors.New("malformed cached vector")
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
