package google

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"toolgate/pkg/logging"
)

// DefaultTokenDir is the default directory for persisted Google grants,
// relative to the user home directory.
const DefaultTokenDir = ".config/toolgate/tokens/google"

// StoredGrant is one persisted credential: the token material plus the
// principal and scope set it was granted for.
type StoredGrant struct {
	// Principal is the identity the grant was issued for.
	Principal string `json:"principal"`

	// Scopes is the scope set the grant covers.
	Scopes []string `json:"scopes"`

	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// RefreshToken is the OAuth refresh token (if available).
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`

	// CreatedAt is when the grant was stored.
	CreatedAt time.Time `json:"created_at"`
}

// ToOAuth2Token converts a StoredGrant to an oauth2.Token.
func (g *StoredGrant) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		TokenType:    g.TokenType,
		Expiry:       g.Expiry,
	}
}

// Covers reports whether the grant was issued to principal with a scope set
// that is a superset of scopes.
func (g *StoredGrant) Covers(principal string, scopes []string) bool {
	if g.Principal != principal {
		return false
	}
	granted := make(map[string]struct{}, len(g.Scopes))
	for _, s := range g.Scopes {
		granted[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}

// GrantStore persists Google credentials on disk with an in-memory cache.
//
// SECURITY: This store handles sensitive OAuth credentials. Files are created
// with 0600 permissions inside a 0700 directory, written via a temp file and
// atomic rename so concurrent refreshes never interleave into a corrupt file,
// and token values are never logged (only principals and scope counts).
type GrantStore struct {
	mu       sync.RWMutex
	dir      string
	grants   map[string]*StoredGrant // in-memory cache, keyed by grantKey
	fileMode bool
}

// GrantStoreConfig configures the grant store.
type GrantStoreConfig struct {
	// Dir is the directory for grant files. Defaults to
	// ~/.config/toolgate/tokens/google.
	Dir string

	// FileMode enables file persistence. If false, grants are in-memory only
	// (used in tests).
	FileMode bool
}

// NewGrantStore creates a grant store with the given configuration.
func NewGrantStore(cfg GrantStoreConfig) (*GrantStore, error) {
	dir := cfg.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultTokenDir)
	}

	store := &GrantStore{
		dir:      dir,
		grants:   make(map[string]*StoredGrant),
		fileMode: cfg.FileMode,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create grant storage directory: %w", err)
		}
	}

	return store, nil
}

// Put stores a grant, replacing any previous grant for the same principal and
// scope set.
func (s *GrantStore) Put(grant *StoredGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now()
	}

	key := grantKey(grant.Principal, grant.Scopes)
	s.grants[key] = grant

	if s.fileMode {
		if err := s.writeGrantFile(key, grant); err != nil {
			logging.Warn("GoogleGrantStore", "Grant persistence failed for principal %s: %v", grant.Principal, err)
			return fmt.Errorf("failed to persist grant: %w", err)
		}
		logging.Info("GoogleGrantStore", "Stored grant for principal %s (%d scopes, refresh secret: %t)",
			grant.Principal, len(grant.Scopes), grant.RefreshToken != "")
	}

	return nil
}

// Lookup returns a grant issued to principal whose scope set covers scopes,
// or nil if none exists. An exact principal+scope-set match is preferred;
// otherwise any covering grant is returned.
func (s *GrantStore) Lookup(principal string, scopes []string) *StoredGrant {
	key := grantKey(principal, scopes)

	// Fast path: exact match in the memory cache.
	s.mu.RLock()
	if grant, ok := s.grants[key]; ok {
		s.mu.RUnlock()
		return grant
	}
	for _, grant := range s.grants {
		if grant.Covers(principal, scopes) {
			s.mu.RUnlock()
			return grant
		}
	}
	s.mu.RUnlock()

	if !s.fileMode {
		return nil
	}

	// Slow path: scan grant files, caching what we load.
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check in case another goroutine populated the cache.
	for _, grant := range s.grants {
		if grant.Covers(principal, scopes) {
			return grant
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		fileKey := strings.TrimSuffix(entry.Name(), ".json")
		grant, err := s.readGrantFile(fileKey)
		if err != nil {
			logging.Warn("GoogleGrantStore", "Skipping malformed grant file %s: %v", entry.Name(), err)
			continue
		}
		s.grants[fileKey] = grant
		if grant.Covers(principal, scopes) {
			return grant
		}
	}

	return nil
}

// Delete removes the grant for the exact principal and scope set.
func (s *GrantStore) Delete(principal string, scopes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(principal, scopes)
	delete(s.grants, key)

	if s.fileMode {
		err := os.Remove(filepath.Join(s.dir, key+".json"))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// grantKey derives a filesystem-safe key from a principal and a scope set.
// Scope order is irrelevant: the set is sorted before hashing.
func grantKey(principal string, scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	hash := sha256.Sum256([]byte(principal + "\x00" + strings.Join(sorted, "\x00")))
	return hex.EncodeToString(hash[:16])
}

// writeGrantFile persists a grant via a temp file and atomic rename.
// REQUIRES: s.mu must be held by the caller.
func (s *GrantStore) writeGrantFile(key string, grant *StoredGrant) error {
	data, err := json.MarshalIndent(grant, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}

	finalPath := filepath.Join(s.dir, key+".json")
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write grant file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace grant file: %w", err)
	}
	return nil
}

// readGrantFile reads a grant from its JSON file.
func (s *GrantStore) readGrantFile(key string) (*StoredGrant, error) {
	// #nosec G304 -- path is constructed from an internal key, not user input
	data, err := os.ReadFile(filepath.Join(s.dir, key+".json"))
	if err != nil {
		return nil, err
	}

	var grant StoredGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}
	return &grant, nil
}
