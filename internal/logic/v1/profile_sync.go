package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/middleware"
)

// Save outcome messages shown by the profile pages.
const (
	MessageSynced       = "Profile updated successfully!"
	MessageSavedLocally = "Profile saved locally. Changes will sync when connection is restored."
)

// defaultRemoteTimeout bounds a single remote call made while a user's lock is held.
const defaultRemoteTimeout = 5 * time.Second

// SaveResult describes where a saved section ended up.
type SaveResult struct {
	Section         domain.Section  `json:"section"`
	Synced          bool            `json:"synced"`
	RemoteAttempted bool            `json:"remote_attempted"`
	Message         string          `json:"message"`
	Data            json.RawMessage `json:"data"`
}

// ProfileSync is the local-first profile store. Every save lands in the
// local store first; the remote copy is best-effort and caught up later by
// SyncPending.
type ProfileSync struct {
	local         domain.LocalStore
	remote        domain.RemoteProfileStore // nil: no remote handle
	events        *Broadcaster
	logger        *zap.Logger
	now           func() time.Time
	remoteTimeout time.Duration

	mu     sync.Mutex
	cache  map[string]*domain.Profile
	loaded map[string]bool // remote read done for this process
	locks  map[string]*sync.Mutex
}

// NewProfileSync creates the profile store. remote may be nil.
func NewProfileSync(local domain.LocalStore, remote domain.RemoteProfileStore, events *Broadcaster, logger *zap.Logger) *ProfileSync {
	if events == nil {
		events = NewBroadcaster()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ProfileSync{
		local:         local,
		remote:        remote,
		events:        events,
		logger:        logger,
		now:           time.Now,
		remoteTimeout: defaultRemoteTimeout,
		cache:         make(map[string]*domain.Profile),
		loaded:        make(map[string]bool),
		locks:         make(map[string]*sync.Mutex),
	}
	s.refreshPending(context.Background())
	return s
}

// HasRemote reports whether a remote handle is configured.
func (s *ProfileSync) HasRemote() bool {
	return s.remote != nil
}

// Events returns the broadcaster saves are published on.
func (s *ProfileSync) Events() *Broadcaster {
	return s.events
}

// lockUser serializes saves and syncs of one user inside this process.
func (s *ProfileSync) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *ProfileSync) cached(userID string) (*domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.cache[userID]
	return p, ok
}

func (s *ProfileSync) setCached(userID string, p *domain.Profile) {
	s.mu.Lock()
	s.cache[userID] = p
	s.mu.Unlock()
}

// Save merges data into one section and persists it. Only a failed local
// write is returned as an error; remote failures downgrade the result to
// "saved locally".
func (s *ProfileSync) Save(ctx context.Context, userID string, section domain.Section, data json.RawMessage) (*SaveResult, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.save", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
		attribute.String("profile.section", string(section)),
	))
	defer span.End()

	section, err := domain.ParseSection(string(section))
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	current, err := s.currentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := cloneProfile(current)
	if err := next.MergeSection(section, data); err != nil {
		return nil, err
	}
	if section == domain.SectionBasic {
		// identity comes from the auth provider, never from the client
		next.Basic.ID = current.Basic.ID
		next.Basic.Email = current.Basic.Email
		next.Basic.JoinedDate = current.Basic.JoinedDate
		next.Basic.LastLogin = current.Basic.LastLogin
	}
	next.Touch(section, s.now())

	sectionData, err := next.SectionJSON(section)
	if err != nil {
		return nil, err
	}

	// 1. local write, unconditional
	if err := s.writeLocal(ctx, userID, section, next, sectionData, false); err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to save profile section locally",
			zap.String("user_id", userID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("save %s locally: %w", section, err)
	}

	// 2. memory cache
	s.setCached(userID, next)

	// 3. one remote attempt
	result := &SaveResult{Section: section, Message: MessageSavedLocally, Data: sectionData}
	if s.remote != nil {
		result.RemoteAttempted = true
		if s.pushSection(ctx, userID, section, next, sectionData) {
			result.Synced = true
			result.Message = MessageSynced
		}
	} else {
		syncAttempts.WithLabelValues(string(section), resultNoop).Inc()
	}

	s.refreshPending(ctx)

	// 4. notify open views
	s.events.Publish(Update{UserID: userID, Section: section, Data: sectionData, Synced: result.Synced})

	span.SetAttributes(
		attribute.Bool("profile.synced", result.Synced),
		attribute.Bool("profile.remote_attempted", result.RemoteAttempted),
	)
	return result, nil
}

// pushSection makes exactly one remote upsert and, on success, marks the
// local entry synced. Failures are logged, never returned.
func (s *ProfileSync) pushSection(ctx context.Context, userID string, section domain.Section, profile *domain.Profile, sectionData json.RawMessage) bool {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	if err := s.remote.UpsertSection(rctx, userID, section, profile); err != nil {
		syncAttempts.WithLabelValues(string(section), resultFailed).Inc()
		s.logger.Warn("Remote profile save failed, kept locally",
			zap.String("user_id", userID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
		return false
	}
	syncAttempts.WithLabelValues(string(section), resultSynced).Inc()

	entry := domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion,
		Data:          sectionData,
		Synced:        true,
		UpdatedAt:     s.now(),
	}
	if err := s.local.Put(ctx, userID, domain.SectionKey(section), entry); err != nil {
		// the remote copy is current; the section is resent on the next rescan
		s.logger.Error("Failed to mark profile section synced",
			zap.String("user_id", userID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
	}
	return true
}

func (s *ProfileSync) writeLocal(ctx context.Context, userID string, section domain.Section, profile *domain.Profile, sectionData json.RawMessage, synced bool) error {
	now := s.now()
	if err := s.local.Put(ctx, userID, domain.SectionKey(section), domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion,
		Data:          sectionData,
		Synced:        synced,
		UpdatedAt:     now,
	}); err != nil {
		return err
	}

	whole, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.local.Put(ctx, userID, domain.ProfileKey(userID), domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion,
		Data:          whole,
		UpdatedAt:     now,
	})
}

// refreshPending sets the pending gauge from the local store, so entries
// left unsynced by an earlier run are counted.
func (s *ProfileSync) refreshPending(ctx context.Context) {
	n, err := s.local.CountPending(ctx, domain.SectionKeyPrefix())
	if err != nil {
		s.logger.Warn("Failed to count pending profile sections", zap.Error(err))
		return
	}
	pendingSections.Set(float64(n))
}

// currentProfile returns the cached profile or assembles it from local copies.
func (s *ProfileSync) currentProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if p, ok := s.cached(userID); ok {
		return p, nil
	}
	p := domain.NewProfile(userID, "", s.now())
	if err := s.mergeLegacy(ctx, userID, p); err != nil {
		return nil, err
	}
	entries, err := s.sectionEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, section := range domain.Sections {
		if entry, ok := entries[section]; ok {
			s.mergeEntry(userID, p, section, entry)
		}
	}
	return p, nil
}

// mergeLegacy merges the whole-profile copy, if any, into p.
func (s *ProfileSync) mergeLegacy(ctx context.Context, userID string, p *domain.Profile) error {
	entry, err := s.local.Get(ctx, userID, domain.ProfileKey(userID))
	switch {
	case errors.Is(err, domain.ErrEntryNotFound):
		return nil
	case errors.Is(err, domain.ErrSchemaVersion):
		s.logger.Warn("Skipping local profile copy from a newer schema", zap.String("user_id", userID))
		return nil
	case err != nil:
		return fmt.Errorf("read local profile: %w", err)
	}
	if err := p.Merge(entry.Data); err != nil {
		s.logger.Warn("Ignoring unreadable local profile copy", zap.String("user_id", userID), zap.Error(err))
	}
	// keep the identity the copy belongs to
	p.Basic.ID = userID
	return nil
}

func (s *ProfileSync) mergeEntry(userID string, p *domain.Profile, section domain.Section, entry domain.LocalEntry) {
	if err := p.MergeSection(section, entry.Data); err != nil {
		s.logger.Warn("Ignoring unreadable local section",
			zap.String("user_id", userID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
	}
}

// sectionEntries returns the local write-through entries of userID by section.
func (s *ProfileSync) sectionEntries(ctx context.Context, userID string) (map[domain.Section]domain.LocalEntry, error) {
	raw, err := s.local.List(ctx, userID, domain.SectionKeyPrefix())
	if err != nil {
		return nil, fmt.Errorf("list local sections: %w", err)
	}
	entries := make(map[domain.Section]domain.LocalEntry, len(raw))
	for key, entry := range raw {
		if section, ok := domain.SectionFromKey(key); ok {
			entries[section] = entry
		}
	}
	return entries, nil
}

// Load returns one section: memory cache, then the section's local entry,
// then the legacy whole-profile copy.
func (s *ProfileSync) Load(ctx context.Context, userID string, section domain.Section) (json.RawMessage, error) {
	section, err := domain.ParseSection(string(section))
	if err != nil {
		return nil, err
	}

	if p, ok := s.cached(userID); ok {
		return p.SectionJSON(section)
	}

	entry, err := s.local.Get(ctx, userID, domain.SectionKey(section))
	switch {
	case err == nil:
		return entry.Data, nil
	case errors.Is(err, domain.ErrSchemaVersion):
		s.logger.Warn("Skipping local section from a newer schema",
			zap.String("user_id", userID),
			zap.String("section", string(section)),
		)
	case !errors.Is(err, domain.ErrEntryNotFound):
		return nil, fmt.Errorf("read local section: %w", err)
	}

	legacy, err := s.local.Get(ctx, userID, domain.ProfileKey(userID))
	switch {
	case err == nil:
		var p domain.Profile
		if err := json.Unmarshal(legacy.Data, &p); err != nil {
			s.logger.Warn("Ignoring unreadable local profile copy", zap.String("user_id", userID), zap.Error(err))
			break
		}
		return p.SectionJSON(section)
	case errors.Is(err, domain.ErrEntryNotFound), errors.Is(err, domain.ErrSchemaVersion):
	default:
		return nil, fmt.Errorf("read local profile: %w", err)
	}

	s.logger.Warn("No saved data for profile section",
		zap.String("user_id", userID),
		zap.String("section", string(section)),
	)
	return nil, fmt.Errorf("load %s for %q: %w", section, userID, domain.ErrProfileNotFound)
}

// LoadProfile assembles the full profile for a signed-in user. Precedence,
// lowest first: defaults, legacy local copy, synced local sections, remote
// sections, auth metadata, unsynced local sections. An unsynced local edit is
// never replaced by the remote copy. The remote is read once per user per
// process; later calls serve the cache.
func (s *ProfileSync) LoadProfile(ctx context.Context, userID string, user *domain.AuthUser) (*domain.Profile, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.load", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	unlock := s.lockUser(userID)
	defer unlock()

	s.mu.Lock()
	cached, hit := s.cache[userID]
	done := s.loaded[userID]
	s.mu.Unlock()
	if hit && (done || s.remote == nil) {
		span.SetAttributes(attribute.Bool("profile.cache_hit", true))
		return cloneProfile(cached), nil
	}

	email := ""
	if user != nil {
		email = user.Email
	}
	p := domain.NewProfile(userID, email, s.now())
	if err := s.mergeLegacy(ctx, userID, p); err != nil {
		return nil, err
	}
	entries, err := s.sectionEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, section := range domain.Sections {
		if entry, ok := entries[section]; ok && entry.Synced {
			s.mergeEntry(userID, p, section, entry)
		}
	}

	if s.remote != nil && !done {
		if s.mergeRemote(ctx, userID, p, entries) {
			s.mu.Lock()
			s.loaded[userID] = true
			s.mu.Unlock()
		}
	}

	if user != nil {
		p.ApplyUserMetadata(user.UserMetadata)
		if user.Email != "" {
			p.Basic.Email = user.Email
		}
		if user.LastSignInAt != nil {
			p.Basic.LastLogin = user.LastSignInAt.UTC()
		}
	}

	for _, section := range domain.Sections {
		if entry, ok := entries[section]; ok && !entry.Synced {
			s.mergeEntry(userID, p, section, entry)
		}
	}

	s.setCached(userID, p)
	return cloneProfile(p), nil
}

// mergeRemote merges remote sections that have no unsynced local edit.
// It reports whether the remote answered (a missing row counts).
func (s *ProfileSync) mergeRemote(ctx context.Context, userID string, p *domain.Profile, local map[domain.Section]domain.LocalEntry) bool {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	sections, err := s.remote.LoadSections(rctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		s.logger.Info("No remote profile yet", zap.String("user_id", userID))
		return true
	}
	if err != nil {
		s.logger.Warn("Remote profile load failed, using local copy",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}

	for _, section := range domain.Sections {
		data, ok := sections[section]
		if !ok {
			continue
		}
		if entry, has := local[section]; has && !entry.Synced {
			s.logger.Info("Keeping unsynced local section over remote copy",
				zap.String("user_id", userID),
				zap.String("section", string(section)),
			)
			continue
		}
		if section == domain.SectionBasic {
			// the remote row only carries contact columns; keep empty ones from clobbering local values
			data = dropEmptyStrings(data)
		}
		if err := p.MergeSection(section, data); err != nil {
			s.logger.Warn("Ignoring unreadable remote section",
				zap.String("user_id", userID),
				zap.String("section", string(section)),
				zap.Error(err),
			)
		}
	}
	return true
}

// SyncPending resends every unsynced section of userID once. It returns the
// number of sections the remote accepted.
func (s *ProfileSync) SyncPending(ctx context.Context, userID string) (int, error) {
	if s.remote == nil {
		return 0, nil
	}
	ctx, span := middleware.StartSpan(ctx, "profile.sync_pending", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	unlock := s.lockUser(userID)
	defer unlock()

	entries, err := s.sectionEntries(ctx, userID)
	if err != nil {
		return 0, err
	}
	profile, err := s.currentProfile(ctx, userID)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, section := range domain.Sections {
		entry, ok := entries[section]
		if !ok || entry.Synced {
			continue
		}
		if s.pushSection(ctx, userID, section, profile, entry.Data) {
			synced++
		}
	}
	s.refreshPending(ctx)

	span.SetAttributes(attribute.Int("profile.synced_sections", synced))
	if synced > 0 {
		s.logger.Info("Pending profile sections synced",
			zap.String("user_id", userID),
			zap.Int("sections", synced),
		)
	}
	return synced, nil
}

// PendingSections lists the sections of userID not yet accepted remotely.
func (s *ProfileSync) PendingSections(ctx context.Context, userID string) ([]domain.Section, error) {
	entries, err := s.sectionEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := []domain.Section{}
	for _, section := range domain.Sections {
		if entry, ok := entries[section]; ok && !entry.Synced {
			pending = append(pending, section)
		}
	}
	return pending, nil
}

// PendingUsers lists users holding unsynced sections.
func (s *ProfileSync) PendingUsers(ctx context.Context) ([]string, error) {
	users, err := s.local.PendingNamespaces(ctx, domain.SectionKeyPrefix())
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

// Clear drops the local copies and cache of userID (logout). The remote copy is kept.
func (s *ProfileSync) Clear(ctx context.Context, userID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	keys := []string{domain.ProfileKey(userID)}
	for _, section := range domain.Sections {
		keys = append(keys, domain.SectionKey(section))
	}
	if err := s.local.Delete(ctx, userID, keys...); err != nil {
		s.logger.Error("Failed to clear local profile", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("clear local profile: %w", err)
	}
	s.refreshPending(ctx)

	s.mu.Lock()
	delete(s.cache, userID)
	delete(s.loaded, userID)
	s.mu.Unlock()
	return nil
}

func cloneProfile(p *domain.Profile) *domain.Profile {
	data, err := json.Marshal(p)
	if err != nil {
		return p
	}
	out := &domain.Profile{}
	if err := json.Unmarshal(data, out); err != nil {
		return p
	}
	if out.Macros == nil {
		out.Macros = map[string]any{}
	}
	if out.Habits == nil {
		out.Habits = map[string]any{}
	}
	return out
}

// dropEmptyStrings removes "" members from a JSON object.
func dropEmptyStrings(data json.RawMessage) json.RawMessage {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return data
	}
	for k, v := range fields {
		if str, ok := v.(string); ok && str == "" {
			delete(fields, k)
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return data
	}
	return out
}
