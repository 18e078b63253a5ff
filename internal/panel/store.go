package panel

// store.go holds the layered configuration store. Defaults come from
// the bundled asset and never change; user configurations live in
// memory and are written through to durable storage after every
// mutation. A storage failure is logged and swallowed: the in-memory
// state stays current for the rest of the process lifetime.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"patchplan/internal/storage"
)

// StorageKey is the single key under which the user configuration
// list is persisted as a JSON array.
const StorageKey = "user_patch_panels"

// ErrDefaultNotFound is returned when copying a default configuration
// whose id does not exist. Callers only pass ids obtained from the
// store, so hitting this indicates a programming error.
var ErrDefaultNotFound = errors.New("default configuration not found")

// Store resolves the effective configuration list from the read-only
// defaults and the persisted user list. Construct one Store at
// application start and inject it; it lives for the process lifetime.
type Store struct {
	mu   sync.RWMutex
	kv   storage.KV
	user []Configuration
}

// NewStore creates a store backed by kv. The user list is loaded once
// here; a read or parse failure yields an empty list and a warning,
// never an error.
func NewStore(ctx context.Context, kv storage.KV) *Store {
	s := &Store{kv: kv}

	raw, found, err := kv.Get(ctx, StorageKey)
	if err != nil {
		slog.Warn("failed to load user configurations", "error", err)
		return s
	}
	if !found {
		return s
	}

	if err := json.Unmarshal([]byte(raw), &s.user); err != nil {
		slog.Warn("stored user configurations are malformed, starting empty", "error", err)
		s.user = nil
	}
	return s
}

// DefaultConfigurations returns the bundled read-only configurations.
func (s *Store) DefaultConfigurations() []Configuration {
	return cloneAll(builtinDefaults)
}

// UserConfigurations returns the current user configuration list.
func (s *Store) UserConfigurations() []Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.user)
}

// AllConfigurations returns the merged view: defaults whose id is not
// shadowed by a user entry, in bundled order, followed by the user
// list in its own order. The result never holds two entries with the
// same id.
func (s *Store) AllConfigurations() []Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userIDs := make(map[string]struct{}, len(s.user))
	for _, cfg := range s.user {
		userIDs[cfg.ID] = struct{}{}
	}

	merged := make([]Configuration, 0, len(builtinDefaults)+len(s.user))
	for _, cfg := range builtinDefaults {
		if _, shadowed := userIDs[cfg.ID]; !shadowed {
			merged = append(merged, cfg.Clone())
		}
	}
	for _, cfg := range s.user {
		merged = append(merged, cfg.Clone())
	}
	return merged
}

// Get returns the configuration with the given id from the merged
// view.
func (s *Store) Get(id string) (Configuration, bool) {
	for _, cfg := range s.AllConfigurations() {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return Configuration{}, false
}

// IsDefaultConfiguration reports whether id belongs to a bundled
// default. A user entry shadowing that id does not change the answer.
func (s *Store) IsDefaultConfiguration(id string) bool {
	for _, cfg := range builtinDefaults {
		if cfg.ID == id {
			return true
		}
	}
	return false
}

// SaveUserConfiguration inserts or replaces cfg in the user list,
// keyed by id, then persists the full list.
func (s *Store) SaveUserConfiguration(ctx context.Context, cfg Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg = cfg.Clone()
	replaced := false
	for i := range s.user {
		if s.user[i].ID == cfg.ID {
			s.user[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		s.user = append(s.user, cfg)
	}

	s.persist(ctx)
}

// DeleteUserConfiguration removes the user configuration with the
// given id and persists. An absent id is a no-op. Defaults are never
// deletable here: the store only ever touches the user list, so a
// delete aimed at a default id simply removes its user shadow, if any.
func (s *Store) DeleteUserConfiguration(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.user[:0]
	for _, cfg := range s.user {
		if cfg.ID != id {
			kept = append(kept, cfg)
		}
	}
	s.user = kept

	s.persist(ctx)
}

// CreateCopyOfDefault returns an editable copy of the default with the
// given id: fresh id, isDefault cleared, name from newName or
// "Copy of " + the original name. The copy is not persisted; callers
// save it explicitly.
func (s *Store) CreateCopyOfDefault(defaultID, newName string) (Configuration, error) {
	for _, cfg := range builtinDefaults {
		if cfg.ID == defaultID {
			cp := cfg.Clone()
			cp.ID = NewConfigurationID()
			cp.IsDefault = false
			if newName != "" {
				cp.Name = newName
			} else {
				cp.Name = "Copy of " + cfg.Name
			}
			return cp, nil
		}
	}
	return Configuration{}, ErrDefaultNotFound
}

// persist writes the user list wholesale. Failures are logged, not
// surfaced: the in-memory list still reflects the mutation. Caller
// must hold mu.
func (s *Store) persist(ctx context.Context) {
	raw, err := json.Marshal(s.user)
	if err != nil {
		slog.Error("failed to encode user configurations", "error", err)
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		slog.Error("failed to save user configurations", "error", err, "count", len(s.user))
	}
}

func cloneAll(cfgs []Configuration) []Configuration {
	out := make([]Configuration, len(cfgs))
	for i, cfg := range cfgs {
		out[i] = cfg.Clone()
	}
	return out
}
