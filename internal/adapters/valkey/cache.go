package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valkey-io/valkey-go"
)

// DefaultPrefix namespaces keys written by the HTTP rate limiter.
const DefaultPrefix = "canopyview:limiter:"

const opTimeout = 2 * time.Second

var _ fiber.Storage = (*Storage)(nil)

// Storage implements fiber.Storage on Valkey so limiter counters are shared
// between API replicas.
type Storage struct {
	client valkey.Client
	prefix string
}

// New connects to Valkey. An empty prefix uses DefaultPrefix.
func New(addr, prefix string) (*Storage, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: client, prefix: prefix}, nil
}

// Key returns the namespaced key stored in Valkey.
func (s *Storage) Key(key string) string {
	return s.prefix + key
}

// Get returns nil, nil when key does not exist.
func (s *Storage) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	b, err := s.client.Do(ctx, s.client.B().Get().Key(s.Key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set stores val. exp <= 0 keeps the key without expiry.
func (s *Storage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if exp <= 0 {
		return s.client.Do(ctx, s.client.B().Set().Key(s.Key(key)).Value(valkey.BinaryString(val)).Build()).Error()
	}
	if exp < time.Second {
		exp = time.Second
	}
	return s.client.Do(ctx,
		s.client.B().Set().Key(s.Key(key)).Value(valkey.BinaryString(val)).Ex(exp).Build(),
	).Error()
}

// Delete removes a key.
func (s *Storage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Do(ctx, s.client.B().Del().Key(s.Key(key)).Build()).Error()
}

// Reset deletes every key under the prefix.
func (s *Storage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*opTimeout)
	defer cancel()

	var cursor uint64
	for {
		entry, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(s.prefix+"*").Count(100).Build(),
		).AsScanEntry()
		if err != nil {
			return fmt.Errorf("scan %s*: %w", s.prefix, err)
		}
		if len(entry.Elements) > 0 {
			if err := s.client.Do(ctx, s.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return err
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks connectivity for readiness probes.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (s *Storage) Close() error {
	s.client.Close()
	return nil
}
