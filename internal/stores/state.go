package stores

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/hkdf"
)

const (
	envelopeVersionV1  = 1
	tagSize            = sha256.Size
	envelopeHeaderSize = 1 + tagSize

	minSecretSize  = 16
	derivedKeySize = 32

	// Derived storage keys are truncated to 128 bits; collision resistance
	// at that length is far beyond the identity cardinality this tracks.
	storageKeyBytes = 16
)

// HKDF info strings keep the key-derivation key and the MAC key independent
// even though both come from the same configured secret.
const (
	keyDerivationInfo = "golockout/v1 storage key derivation"
	integrityTagInfo  = "golockout/v1 integrity tag"
)

var (
	// ErrUnavailable indicates the storage backend is unreachable or failed.
	ErrUnavailable = errors.New("state storage unavailable")
	// ErrConflict indicates a Swap lost to a concurrent writer.
	ErrConflict = errors.New("state write conflict")
	// ErrSecretTooShort rejects secrets below the minimum size.
	ErrSecretTooShort = fmt.Errorf("storage secret shorter than %d bytes", minSecretSize)
)

// RedisStore persists sealed security-state envelopes in Redis.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	keyKey []byte
	macKey []byte
}

// NewRedisStore derives the key-derivation and MAC keys from secret and
// returns a store scoped to prefix ("ls" when empty).
func NewRedisStore(client redis.UniversalClient, prefix string, secret []byte) (*RedisStore, error) {
	if len(secret) < minSecretSize {
		return nil, ErrSecretTooShort
	}
	if prefix == "" {
		prefix = "ls"
	}

	keyKey, err := expandSecret(secret, keyDerivationInfo)
	if err != nil {
		return nil, err
	}
	macKey, err := expandSecret(secret, integrityTagInfo)
	if err != nil {
		return nil, err
	}

	return &RedisStore{
		redis:  client,
		prefix: prefix,
		keyKey: keyKey,
		macKey: macKey,
	}, nil
}

func expandSecret(secret []byte, info string) ([]byte, error) {
	out := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("expand storage secret: %w", err)
	}
	return out, nil
}

// DeriveKey maps an identifier to its storage key. The derivation is keyed
// and one-way: the keyspace never reveals the identifier.
func (s *RedisStore) DeriveKey(identifier string) string {
	mac := hmac.New(sha256.New, s.keyKey)
	mac.Write([]byte(identifier))
	return s.prefix + ":" + hex.EncodeToString(mac.Sum(nil)[:storageKeyBytes])
}

func (s *RedisStore) tag(key string, payload []byte) []byte {
	mac := hmac.New(sha256.New, s.macKey)
	mac.Write([]byte(key))
	mac.Write([]byte{0})
	mac.Write(payload)
	return mac.Sum(nil)
}

// Seal wraps payload in the versioned envelope: version byte, integrity tag
// over key and payload, then the payload.
func (s *RedisStore) Seal(key string, payload []byte) []byte {
	out := make([]byte, 0, envelopeHeaderSize+len(payload))
	out = append(out, envelopeVersionV1)
	out = append(out, s.tag(key, payload)...)
	return append(out, payload...)
}

// Payload splits the envelope and returns the payload without verifying the
// tag. Tag verification is a separate, explicit step (CheckIntegrity) so
// that structural and checksum corruption stay distinguishable.
func (s *RedisStore) Payload(value []byte) ([]byte, bool) {
	if len(value) < envelopeHeaderSize || value[0] != envelopeVersionV1 {
		return nil, false
	}
	return value[envelopeHeaderSize:], true
}

// CheckIntegrity reports whether the envelope tag matches its payload under
// the given key.
func (s *RedisStore) CheckIntegrity(key string, value []byte) bool {
	payload, ok := s.Payload(value)
	if !ok {
		return false
	}
	return hmac.Equal(value[1:envelopeHeaderSize], s.tag(key, payload))
}

func (s *RedisStore) Store(ctx context.Context, key string, value []byte) error {
	if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Swap stores new only if the current value equals old (nil = key absent),
// using a WATCH/MULTI optimistic transaction. Returns ErrConflict when a
// concurrent writer got there first.
func (s *RedisStore) Swap(ctx context.Context, key string, old, new []byte) error {
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if errors.Is(err, redis.Nil) {
			cur = nil
		}
		if !bytes.Equal(cur, old) {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, new, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Retrieve returns the stored envelope, or nil when the key is absent.
func (s *RedisStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	value, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Keys enumerates all storage keys under the store's prefix via SCAN.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := s.prefix + ":*"
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
