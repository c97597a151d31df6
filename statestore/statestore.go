package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/xraph/airlift"
)

// Backend names accepted by [New].
const (
	BackendMemory     = "memory"
	BackendFilesystem = "filesystem"
	BackendRedis      = "redis"
	BackendSQLite     = "sqlite"
	BackendMongo      = "mongo"
)

// ErrNotFound is returned by Get when no document exists under the key.
var ErrNotFound = errors.New("statestore: document not found")

// Store persists opaque state documents by key. Implementations are safe
// for concurrent use. An empty value is a valid document and round-trips
// as such.
type Store interface {
	// Put writes the document, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Get reads the document. It returns ErrNotFound when the key has
	// never been written or has been deleted.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the document. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources owned by the store.
	Close(ctx context.Context) error
}

// New opens the configured backend rooted at prefix. The prefix is part of
// the stored key: changing it orphans previously written documents, so it
// must stay stable across deployments that share a backend.
func New(cfg airlift.StateStorageConfig, prefix string) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(prefix), nil
	case BackendFilesystem:
		return NewFilesystemStore(cfg.Root, prefix)
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return NewRedisStore(client, prefix), nil
	case BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return NewSQLiteStore(db, prefix)
	case BackendMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return NewMongoStore(client.Database(cfg.MongoDatabase), prefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", airlift.ErrUnknownBackend, cfg.Backend)
	}
}

// documentKey joins the prefix and key into the stored key.
func documentKey(prefix, key string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(key, "/")
}
