package v1

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/internal/core/repository/local"
)

var errUnreachable = errors.New("dial tcp: connection refused")

func newLocalStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.New(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeRemote records upserts and serves canned sections.
type fakeRemote struct {
	mu       sync.Mutex
	err      error // returned by UpsertSection and Ping
	loadErr  error
	sections map[domain.Section]json.RawMessage
	upserts  []domain.Section
	pushed   map[domain.Section]json.RawMessage // last section content sent
	loads    int
}

func (f *fakeRemote) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeRemote) UpsertSection(_ context.Context, _ string, section domain.Section, profile *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, section)
	if f.err != nil {
		return f.err
	}
	data, err := profile.SectionJSON(section)
	if err != nil {
		return err
	}
	if f.pushed == nil {
		f.pushed = map[domain.Section]json.RawMessage{}
	}
	f.pushed[section] = data
	return nil
}

func (f *fakeRemote) pushedSection(section domain.Section) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out map[string]any
	_ = json.Unmarshal(f.pushed[section], &out)
	return out
}

func (f *fakeRemote) LoadSections(context.Context, string) (map[domain.Section]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.sections == nil {
		return nil, domain.ErrProfileNotFound
	}
	return f.sections, nil
}

func (f *fakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeRemote) upsertCalls() []domain.Section {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Section(nil), f.upserts...)
}

func (f *fakeRemote) resetCalls() {
	f.mu.Lock()
	f.upserts = nil
	f.mu.Unlock()
}

// fakeMailer records sent emails.
type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []domain.Email
}

func (m *fakeMailer) Send(_ context.Context, email domain.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return m.err
}

func (m *fakeMailer) emails() []domain.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Email(nil), m.sent...)
}
