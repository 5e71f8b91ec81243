package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/ayo6706/twinvest-bridge/internal/identity"
)

var ErrNoSession = errors.New("no stored session")

// StoredSession is what an AuthClient persists between runs.
type StoredSession struct {
	SessionKey []byte                    `json:"session_key"`
	Delegation *identity.DelegationChain `json:"delegation,omitempty"`
}

type KeyStore interface {
	// Load returns ErrNoSession when nothing is stored.
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, s StoredSession) error
	Delete(ctx context.Context) error
}

// MemoryKeyStore keeps the session in process memory.
type MemoryKeyStore struct {
	mu sync.Mutex
	s  *StoredSession
}

func NewMemoryKeyStore() *MemoryKeyStore { return &MemoryKeyStore{} }

func (m *MemoryKeyStore) Load(context.Context) (*StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, ErrNoSession
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemoryKeyStore) Save(_ context.Context, s StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *MemoryKeyStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

// FileKeyStore persists the session as a YAML profile readable only by
// the current user.
type FileKeyStore struct {
	path string
}

type sessionFile struct {
	SessionKey string `yaml:"session_key"`
	Delegation string `yaml:"delegation,omitempty"`
}

func NewFileKeyStore(path string) *FileKeyStore { return &FileKeyStore{path: path} }

func (f *FileKeyStore) Load(context.Context) (*StoredSession, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	key, err := hex.DecodeString(sf.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("parsing session key: %w", err)
	}
	s := &StoredSession{SessionKey: key}
	if sf.Delegation != "" {
		var chain identity.DelegationChain
		if err := json.Unmarshal([]byte(sf.Delegation), &chain); err != nil {
			return nil, fmt.Errorf("parsing delegation: %w", err)
		}
		s.Delegation = &chain
	}
	return s, nil
}

func (f *FileKeyStore) Save(_ context.Context, s StoredSession) error {
	sf := sessionFile{SessionKey: hex.EncodeToString(s.SessionKey)}
	if s.Delegation != nil {
		raw, err := json.Marshal(s.Delegation)
		if err != nil {
			return err
		}
		sf.Delegation = string(raw)
	}
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileKeyStore) Delete(context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisKeyStore keeps the session under one key. The key expires with
// the delegation.
type RedisKeyStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisKeyStore(client *redis.Client, key string) *RedisKeyStore {
	return &RedisKeyStore{client: client, key: key, now: time.Now}
}

func (r *RedisKeyStore) Load(ctx context.Context) (*StoredSession, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s StoredSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing stored session: %w", err)
	}
	return &s, nil
}

func (r *RedisKeyStore) Save(ctx context.Context, s StoredSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if s.Delegation != nil {
		if ttl = s.Delegation.Expiration().Sub(r.now()); ttl <= 0 {
			ttl = time.Second
		}
	}
	return r.client.Set(ctx, r.key, raw, ttl).Err()
}

func (r *RedisKeyStore) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
