package psql

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements; QueryRow serves row.
type fakeDB struct {
	execs     []execCall
	execErr   error
	row       pgx.Row
	committed bool
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Ping(context.Context) error { return nil }

// fakeTx forwards Exec to the parent; other pgx.Tx methods are unused.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case **string:
			if v, ok := r.values[i].(string); ok {
				*p = &v
			}
		case *[]byte:
			if v, ok := r.values[i].(string); ok {
				*p = []byte(v)
			}
		}
	}
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC) }

func TestUpsertSection_Basic(t *testing.T) {
	db := &fakeDB{}
	repo := NewProfileRepository(db)
	repo.now = fixedNow

	p := domain.NewProfile("u1", "", fixedNow())
	p.Basic.FullName = "Ana"
	p.Basic.Phone = "123"

	require.NoError(t, repo.UpsertSection(context.Background(), "u1", domain.SectionBasic, p))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "ON CONFLICT (id)")
	args := db.execs[0].args
	assert.Equal(t, "u1", args[0])
	assert.Equal(t, "Ana", args[1])
	assert.Equal(t, "123", *args[2].(*string))
	assert.Nil(t, args[3].(*string), "empty columns are NULL")
}

func TestUpsertSection_JSONColumn(t *testing.T) {
	db := &fakeDB{}
	repo := NewProfileRepository(db)

	p := domain.NewProfile("u1", "", fixedNow())
	p.Preferences.Theme = "light"

	require.NoError(t, repo.UpsertSection(context.Background(), "u1", domain.SectionPreferences, p))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "preferences = EXCLUDED.preferences")
	assert.Contains(t, db.execs[0].sql, "$2::jsonb")
	assert.Contains(t, db.execs[0].args[1].(string), `"theme":"light"`)
}

func TestUpsertSection_BodyMetricsKeepsDailyRow(t *testing.T) {
	db := &fakeDB{}
	repo := NewProfileRepository(db)
	repo.now = fixedNow

	weight := 81.2
	p := domain.NewProfile("u1", "", fixedNow())
	p.BodyMetrics.CurrentWeight = &weight

	require.NoError(t, repo.UpsertSection(context.Background(), "u1", domain.SectionBodyMetrics, p))
	require.Len(t, db.execs, 2)
	assert.True(t, db.committed)
	assert.True(t, strings.Contains(db.execs[1].sql, "ON CONFLICT (user_id, date)"))
	assert.Equal(t, "2026-04-02", db.execs[1].args[1])
	assert.Equal(t, &weight, db.execs[1].args[2])
}

func TestUpsertSection_Error(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}
	repo := NewProfileRepository(db)

	err := repo.UpsertSection(context.Background(), "u1", domain.SectionMacros, domain.NewProfile("u1", "", fixedNow()))
	assert.ErrorContains(t, err, "connection refused")

	err = repo.UpsertSection(context.Background(), "u1", domain.Section("x"), domain.NewProfile("u1", "", fixedNow()))
	assert.True(t, errors.Is(err, domain.ErrUnknownSection))
}

func TestLoadSections(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{
		"Ana", "123", nil, nil, "Leeds", nil,
		`{"height":170}`, `{"theme":"light"}`, nil, `not json`,
	}}}
	repo := NewProfileRepository(db)

	sections, err := repo.LoadSections(context.Background(), "u1")
	require.NoError(t, err)

	var basic map[string]string
	require.NoError(t, json.Unmarshal(sections[domain.SectionBasic], &basic))
	want := map[string]string{
		"full_name": "Ana", "phone": "123", "avatar_url": "",
		"birthday": "", "location": "Leeds", "bio": "",
	}
	if diff := cmp.Diff(want, basic); diff != "" {
		t.Errorf("basic section mismatch (-want +got):\n%s", diff)
	}

	assert.JSONEq(t, `{"height":170}`, string(sections[domain.SectionBodyMetrics]))
	assert.Contains(t, sections, domain.SectionPreferences)
	assert.NotContains(t, sections, domain.SectionMacros, "NULL columns are absent")
	assert.NotContains(t, sections, domain.SectionHabits, "invalid JSON is skipped")
}

func TestLoadSections_NotFound(t *testing.T) {
	repo := NewProfileRepository(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := repo.LoadSections(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrProfileNotFound))
}

func TestInquiryRepository(t *testing.T) {
	db := &fakeDB{}
	repo := NewInquiryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.InsertContact(ctx, &domain.ContactInquiry{ID: "id-1", Email: "a@b.co", Message: "hi"}))
	require.NoError(t, repo.InsertLead(ctx, &domain.Lead{ID: "id-2", Email: "a@b.co", Source: "website"}))
	require.NoError(t, repo.UpsertSubscriber(ctx, &domain.NewsletterSubscriber{Email: "a@b.co", Source: "website"}))

	require.Len(t, db.execs, 3)
	assert.Contains(t, db.execs[0].sql, "contact_inquiries")
	assert.Nil(t, db.execs[0].args[1].(*string), "blank name is NULL")
	assert.Contains(t, db.execs[2].sql, "ON CONFLICT (email)")
}
