package psql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Ensure ProfileRepository implements domain.RemoteProfileStore
var _ domain.RemoteProfileStore = (*ProfileRepository)(nil)

// jsonColumns maps JSON-typed sections to their profiles column.
var jsonColumns = map[domain.Section]string{
	domain.SectionBodyMetrics: "body_metrics",
	domain.SectionPreferences: "preferences",
	domain.SectionMacros:      "macros",
	domain.SectionHabits:      "habits",
}

// ProfileRepository implements domain.RemoteProfileStore on the hosted "profiles" table
type ProfileRepository struct {
	db  DBTX
	now func() time.Time
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db, now: time.Now}
}

// Ping checks the remote is reachable.
func (r *ProfileRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// UpsertSection writes one section of profile for userID. The write is a
// blind overwrite keyed by id.
func (r *ProfileRepository) UpsertSection(ctx context.Context, userID string, section domain.Section, profile *domain.Profile) error {
	now := r.now().UTC()

	if section == domain.SectionBasic {
		b := profile.Basic
		_, err := r.db.Exec(ctx, `
			INSERT INTO profiles (id, full_name, phone, avatar_url, birthday, location, bio, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				full_name = EXCLUDED.full_name,
				phone = EXCLUDED.phone,
				avatar_url = EXCLUDED.avatar_url,
				birthday = EXCLUDED.birthday,
				location = EXCLUDED.location,
				bio = EXCLUDED.bio,
				updated_at = EXCLUDED.updated_at`,
			userID, b.FullName, nullIfEmpty(b.Phone), nullIfEmpty(b.AvatarURL),
			nullIfEmpty(b.Birthday), nullIfEmpty(b.Location), nullIfEmpty(b.Bio), now,
		)
		if err != nil {
			return fmt.Errorf("upsert profile basic: %w", err)
		}
		return nil
	}

	column, ok := jsonColumns[section]
	if !ok {
		return fmt.Errorf("upsert section %q: %w", section, domain.ErrUnknownSection)
	}
	data, err := profile.SectionJSON(section)
	if err != nil {
		return err
	}

	// column comes from jsonColumns, never from input
	upsert := fmt.Sprintf(`
		INSERT INTO profiles (id, %[1]s, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET
			%[1]s = EXCLUDED.%[1]s,
			updated_at = EXCLUDED.updated_at`, column)

	if section != domain.SectionBodyMetrics {
		if _, err := r.db.Exec(ctx, upsert, userID, string(data), now); err != nil {
			return fmt.Errorf("upsert profile %s: %w", column, err)
		}
		return nil
	}

	// body metrics also keep one history row per day
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin body metrics upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsert, userID, string(data), now); err != nil {
		return fmt.Errorf("upsert profile body_metrics: %w", err)
	}

	m := profile.BodyMetrics
	measurements, err := json.Marshal(m.Measurements)
	if err != nil {
		return fmt.Errorf("encode measurements: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO body_metrics (user_id, date, weight, height, body_fat, measurements, updated_at)
		VALUES ($1, $2::date, $3, $4, $5, $6::jsonb, $7)
		ON CONFLICT (user_id, date) DO UPDATE SET
			weight = EXCLUDED.weight,
			height = EXCLUDED.height,
			body_fat = EXCLUDED.body_fat,
			measurements = EXCLUDED.measurements,
			updated_at = EXCLUDED.updated_at`,
		userID, now.Format("2006-01-02"), m.CurrentWeight, m.Height, m.BodyFatPercentage, string(measurements), now,
	)
	if err != nil {
		return fmt.Errorf("upsert body_metrics history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit body metrics upsert: %w", err)
	}
	return nil
}

// LoadSections reads the remote row for userID and returns each stored section as JSON.
func (r *ProfileRepository) LoadSections(ctx context.Context, userID string) (map[domain.Section]json.RawMessage, error) {
	var (
		fullName                                  string
		phone, avatarURL, birthday, location, bio *string
		bodyMetrics, preferences, macros, habits  []byte
	)

	err := r.db.QueryRow(ctx, `
		SELECT full_name, phone, avatar_url, birthday, location, bio,
		       body_metrics, preferences, macros, habits
		FROM profiles
		WHERE id = $1`, userID,
	).Scan(&fullName, &phone, &avatarURL, &birthday, &location, &bio,
		&bodyMetrics, &preferences, &macros, &habits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("remote profile %q: %w", userID, domain.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}

	basic, err := json.Marshal(map[string]string{
		"full_name":  fullName,
		"phone":      derefString(phone),
		"avatar_url": derefString(avatarURL),
		"birthday":   derefString(birthday),
		"location":   derefString(location),
		"bio":        derefString(bio),
	})
	if err != nil {
		return nil, fmt.Errorf("encode basic section: %w", err)
	}

	sections := map[domain.Section]json.RawMessage{domain.SectionBasic: basic}
	for section, raw := range map[domain.Section][]byte{
		domain.SectionBodyMetrics: bodyMetrics,
		domain.SectionPreferences: preferences,
		domain.SectionMacros:      macros,
		domain.SectionHabits:      habits,
	} {
		if len(raw) > 0 && json.Valid(raw) {
			sections[section] = raw
		}
	}
	return sections, nil
}
