package domain

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// SchemaVersion is written with every local entry. Readers reject entries
// from a newer schema and may migrate older ones.
const SchemaVersion = 1

// Local store keys. Keys are scoped by namespace (one namespace per signed-in
// user or anonymous client), matching what the site kept in browser storage.
const (
	KeyCurrentUser    = "gb_current_user"
	KeyRememberMe     = "gb_remember_me"
	KeyActiveDiscount = "active-discount"
	KeyLastSubmit     = "gb_last_submit"

	profileKeyPrefix = "garcia_profile_"
	sectionKeyPrefix = "gb_brutal_"
)

// ProfileKey is the key of the whole-profile copy for a user.
func ProfileKey(userID string) string {
	return profileKeyPrefix + userID
}

// SectionKey is the key of one section's write-through entry.
func SectionKey(s Section) string {
	return sectionKeyPrefix + string(s)
}

// SectionKeyPrefix is the common prefix of all section keys.
func SectionKeyPrefix() string {
	return sectionKeyPrefix
}

// SectionFromKey reverses SectionKey.
func SectionFromKey(key string) (Section, bool) {
	if !strings.HasPrefix(key, sectionKeyPrefix) {
		return "", false
	}
	s, err := ParseSection(strings.TrimPrefix(key, sectionKeyPrefix))
	if err != nil {
		return "", false
	}
	return s, true
}

// ClientNamespace scopes keys for an unauthenticated client (e.g. the
// contact form throttle) by remote address.
func ClientNamespace(clientIP string) string {
	return "client:" + clientIP
}

// LocalEntry is one JSON value in the local store.
type LocalEntry struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
	Synced        bool            `json:"synced"`
	UpdatedAt     time.Time       `json:"timestamp"`
}

// LocalStore is the local-first key/value store. Writes never touch the network.
type LocalStore interface {
	Put(ctx context.Context, namespace, key string, entry LocalEntry) error
	// Get returns ErrEntryNotFound when the key is absent.
	Get(ctx context.Context, namespace, key string) (LocalEntry, error)
	Delete(ctx context.Context, namespace string, keys ...string) error
	// List returns every entry in namespace whose key starts with prefix.
	List(ctx context.Context, namespace, prefix string) (map[string]LocalEntry, error)
	// PendingNamespaces returns namespaces holding unsynced entries under prefix.
	PendingNamespaces(ctx context.Context, prefix string) ([]string, error)
	// CountPending counts unsynced entries under prefix across all namespaces.
	CountPending(ctx context.Context, prefix string) (int, error)
	Close() error
}
