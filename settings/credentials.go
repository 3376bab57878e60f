// Package settings keeps provider credentials in
// $XDG_DATA_HOME/textkey/auth.json (~/.local/share/textkey/auth.json when
// unset), readable by the owner only.
//
// Each provider ID maps to one entry, either an OAuth token pair (copilot)
// or an API key with an optional endpoint. API keys given on the command
// line or in the environment take precedence over the file; see APIKey.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EnvAPIKey overrides the stored key for any provider.
const EnvAPIKey = "TEXTKEY_API_KEY"

// Entry kinds.
const (
	KindOAuth = "oauth"
	KindAPI   = "api"
)

// providerEnv names the conventional key variable per provider.
var providerEnv = map[string]string{
	"openai":        "OPENAI_API_KEY",
	"custom-openai": "OPENAI_API_KEY",
	"google":        "GEMINI_API_KEY",
	"groq":          "GROQ_API_KEY",
}

// Info is one provider entry. Type selects which fields are meaningful.
type Info struct {
	Type string `json:"type"`

	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
	Expires int64  `json:"expires,omitempty"` // unix seconds, 0 never expires

	Key     string `json:"key,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

func (i *Info) IsOAuth() bool { return i != nil && i.Type == KindOAuth }
func (i *Info) IsAPI() bool   { return i != nil && i.Type == KindAPI }

// Secret is the access token of an OAuth entry or the key of an API entry.
func (i *Info) Secret() string {
	switch {
	case i.IsOAuth():
		return i.Access
	case i.IsAPI():
		return i.Key
	}
	return ""
}

// Store maps provider IDs to entries.
type Store map[string]*Info

// Providers returns the stored provider IDs in order.
func (s Store) Providers() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DataDir returns textkey's XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "textkey"), nil
}

// FilePath returns the store location, or "" if it cannot be determined.
func FilePath() string {
	p, _ := storePath()
	return p
}

func storePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "auth.json"), nil
}

// Load reads the store. A missing or unreadable file yields an empty store.
func Load() Store {
	s := Store{}
	path, err := storePath()
	if err != nil {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if json.Unmarshal(data, &s) != nil || s == nil {
		return Store{}
	}
	return s
}

// Save replaces the store on disk. The file is written beside the target
// and renamed over it so readers never see a partial store.
func Save(s Store) error {
	path, err := storePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".auth-*.json")
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// update loads the store, applies fn and saves when fn reports a change.
func update(fn func(Store) bool) error {
	s := Load()
	if !fn(s) {
		return nil
	}
	return Save(s)
}

// Get returns the entry for providerID, or nil.
func Get(providerID string) *Info { return Load()[providerID] }

// Set inserts or replaces the entry for providerID.
func Set(providerID string, info *Info) error {
	return update(func(s Store) bool {
		s[providerID] = info
		return true
	})
}

// Remove drops the entry for providerID. Removing an absent entry is a no-op.
func Remove(providerID string) error {
	return update(func(s Store) bool {
		if _, ok := s[providerID]; !ok {
			return false
		}
		delete(s, providerID)
		return true
	})
}

// RemoveAll deletes the store file.
func RemoveAll() error {
	path, err := storePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// SetOAuth records an OAuth token. An empty refresh keeps the stored one.
func SetOAuth(providerID, access, refresh string, expires int64) error {
	return update(func(s Store) bool {
		if prev := s[providerID]; refresh == "" && prev.IsOAuth() {
			refresh = prev.Refresh
		}
		s[providerID] = &Info{Type: KindOAuth, Access: access, Refresh: refresh, Expires: expires}
		return true
	})
}

// GetOAuth returns the OAuth entry for providerID, or nil.
func GetOAuth(providerID string) *Info {
	if info := Get(providerID); info.IsOAuth() {
		return info
	}
	return nil
}

// SetAPIKey records an API key and an optional endpoint.
func SetAPIKey(providerID, key, baseURL string) error {
	return Set(providerID, &Info{Type: KindAPI, Key: key, BaseURL: baseURL})
}

// GetAPIKey returns the stored key for providerID.
func GetAPIKey(providerID string) string {
	if info := Get(providerID); info.IsAPI() {
		return info.Key
	}
	return ""
}

// GetBaseURL returns the stored endpoint for providerID.
func GetBaseURL(providerID string) string {
	if info := Get(providerID); info != nil {
		return info.BaseURL
	}
	return ""
}

// EnvVarForProvider returns the provider's conventional key variable,
// or "" when there is none.
func EnvVarForProvider(providerID string) string { return providerEnv[providerID] }

// APIKey resolves a key from flagValue, TEXTKEY_API_KEY, the provider's
// own variable and finally the store, first non-empty wins.
func APIKey(providerID, flagValue string) string {
	candidates := []string{flagValue, os.Getenv(EnvAPIKey)}
	if name := EnvVarForProvider(providerID); name != "" {
		candidates = append(candidates, os.Getenv(name))
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return GetAPIKey(providerID)
}

// MaskKey shortens a secret for display: "sk-a...wxyz".
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
