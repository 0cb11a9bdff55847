package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	KeyPrefix        = "recall_"
	PublicUserID     = "public"
	DefaultRateLimit = 100
)

var ErrKeyNotFound = errors.New("api key not found")

type Key struct {
	Name      string     `json:"name"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
	Active    bool       `json:"is_active"`
	RateLimit int        `json:"rate_limit"`
}

// KeySummary is a listing row; the key itself is masked.
type KeySummary struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"is_active"`
}

// KeyStore keeps API keys in a JSON file keyed by the key string.
type KeyStore struct {
	path    string
	enabled bool
	mu      sync.RWMutex
	keys    map[string]Key
	loaded  bool
	now     func() time.Time
}

func NewKeyStore(path string, enabled bool) *KeyStore {
	return &KeyStore{
		path:    path,
		enabled: enabled,
		keys:    make(map[string]Key),
		now:     time.Now,
	}
}

// Load reads the key file. A missing file is an empty store; a corrupt one
// is an error so it never gets overwritten.
func (s *KeyStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *KeyStore) loadLocked(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.FromCtx(ctx).Debug().Str("path", s.path).Msg("api key file not found, starting empty")
		s.keys = make(map[string]Key)
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read api keys: %w", err)
	}

	keys := make(map[string]Key)
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to parse api keys: %w", err)
	}
	if keys == nil {
		keys = make(map[string]Key)
	}

	s.keys = keys
	s.loaded = true
	return nil
}

func (s *KeyStore) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.loadLocked(ctx)
}

func (s *KeyStore) saveLocked() error {
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal api keys: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write api keys: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace api keys: %w", err)
	}
	return nil
}

func (s *KeyStore) Generate(ctx context.Context, userID, name string, rateLimit int) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	key := KeyPrefix + base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}

	s.keys[key] = Key{
		Name:      name,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Active:    true,
		RateLimit: rateLimit,
	}
	if err := s.saveLocked(); err != nil {
		delete(s.keys, key)
		return "", err
	}

	log.FromCtx(ctx).Info().Str("user_id", userID).Str("name", name).Msg("api key generated")
	return key, nil
}

// Validate implements core.KeyValidator.
func (s *KeyStore) Validate(key string) (core.KeyInfo, bool) {
	return s.ValidateContext(context.Background(), key)
}

// ValidateContext accepts active keys and stamps their last use. With keys
// disabled every caller is the public identity.
func (s *KeyStore) ValidateContext(ctx context.Context, key string) (core.KeyInfo, bool) {
	if !s.enabled {
		return core.KeyInfo{UserID: PublicUserID, Name: PublicUserID}, true
	}
	if key == "" {
		return core.KeyInfo{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("api key store unavailable")
		return core.KeyInfo{}, false
	}

	k, ok := s.keys[key]
	if !ok || !k.Active {
		return core.KeyInfo{}, false
	}

	used := s.now().UTC()
	k.LastUsed = &used
	s.keys[key] = k
	if err := s.saveLocked(); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to record api key use")
	}

	return core.KeyInfo{UserID: k.UserID, Name: k.Name, RateLimit: k.RateLimit}, true
}

// Revoke deactivates a key. A non-empty userID restricts it to that owner's keys.
func (s *KeyStore) Revoke(ctx context.Context, key, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	k, ok := s.keys[key]
	if !ok || (userID != "" && k.UserID != userID) {
		return ErrKeyNotFound
	}
	k.Active = false
	s.keys[key] = k
	return s.saveLocked()
}

// Delete removes a key owned by userID.
func (s *KeyStore) Delete(ctx context.Context, key, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	k, ok := s.keys[key]
	if !ok || k.UserID != userID {
		return ErrKeyNotFound
	}
	delete(s.keys, key)
	return s.saveLocked()
}

// List returns the keys of userID, oldest first, with the middle masked.
func (s *KeyStore) List(ctx context.Context, userID string) ([]KeySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	out := make([]KeySummary, 0)
	for key, k := range s.keys {
		if k.UserID != userID {
			continue
		}
		out = append(out, KeySummary{
			Key:       Mask(key),
			Name:      k.Name,
			CreatedAt: k.CreatedAt,
			Active:    k.Active,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Mask keeps the first ten and last five characters of a key.
func Mask(key string) string {
	if len(key) <= 15 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + strings.Repeat("*", len(key)-15) + key[len(key)-5:]
}
