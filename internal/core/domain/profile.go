package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Section names one independently saved part of a profile.
type Section string

const (
	SectionBasic       Section = "basic"
	SectionBodyMetrics Section = "body_metrics"
	SectionPreferences Section = "preferences"
	SectionMacros      Section = "macros"
	SectionHabits      Section = "habits"
)

// Sections lists every profile section in rescan order.
var Sections = []Section{
	SectionBasic,
	SectionBodyMetrics,
	SectionPreferences,
	SectionMacros,
	SectionHabits,
}

// ParseSection accepts a section name, including the dashboard's older
// "profile" and "metrics" aliases.
func ParseSection(name string) (Section, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "basic", "profile":
		return SectionBasic, nil
	case "body_metrics", "metrics":
		return SectionBodyMetrics, nil
	case "preferences":
		return SectionPreferences, nil
	case "macros":
		return SectionMacros, nil
	case "habits":
		return SectionHabits, nil
	}
	return "", fmt.Errorf("section %q: %w", name, ErrUnknownSection)
}

// Basic holds identity, contact details, bio and goals.
type Basic struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Phone           string    `json:"phone" binding:"max=32"`
	AvatarURL       string    `json:"avatar_url" binding:"omitempty,url"`
	Birthday        string    `json:"birthday"`
	Location        string    `json:"location"`
	Bio             string    `json:"bio" binding:"max=2000"`
	Goals           []string  `json:"goals"`
	ExperienceLevel string    `json:"experience_level" binding:"omitempty,oneof=beginner intermediate advanced"`
	JoinedDate      time.Time `json:"joined_date"`
	LastLogin       time.Time `json:"last_login"`
}

// Measurements are body circumferences in the user's units.
type Measurements struct {
	Chest  *float64 `json:"chest,omitempty"`
	Waist  *float64 `json:"waist,omitempty"`
	Hips   *float64 `json:"hips,omitempty"`
	Arms   *float64 `json:"arms,omitempty"`
	Thighs *float64 `json:"thighs,omitempty"`
}

// WeightEntry is one dated weigh-in.
type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// BodyMetrics holds weight, height, measurements and their history.
type BodyMetrics struct {
	CurrentWeight     *float64      `json:"current_weight,omitempty" binding:"omitempty,gt=0,lt=700"`
	Height            *float64      `json:"height,omitempty" binding:"omitempty,gt=0,lt=300"`
	TargetWeight      *float64      `json:"target_weight,omitempty" binding:"omitempty,gt=0,lt=700"`
	BodyFatPercentage *float64      `json:"body_fat_percentage,omitempty" binding:"omitempty,gte=0,lte=100"`
	Measurements      Measurements  `json:"measurements"`
	WeightHistory     []WeightEntry `json:"weight_history,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// BMI returns weight / (height in metres)^2 when both are known.
func (m BodyMetrics) BMI() (float64, bool) {
	if m.CurrentWeight == nil || m.Height == nil || *m.Height <= 0 {
		return 0, false
	}
	h := *m.Height / 100
	return *m.CurrentWeight / (h * h), true
}

// Notifications are per-channel opt-ins.
type Notifications struct {
	Email     bool `json:"email"`
	Push      bool `json:"push"`
	Reminders bool `json:"reminders"`
}

// Preferences holds display and notification settings.
type Preferences struct {
	Units         string        `json:"units" binding:"omitempty,oneof=metric imperial"`
	Theme         string        `json:"theme" binding:"omitempty,oneof=dark light auto"`
	Language      string        `json:"language" binding:"omitempty,oneof=en pt es"`
	Notifications Notifications `json:"notifications"`
}

// Profile is the full user profile as the dashboard and my-profile pages see it.
// Macros and Habits are free-form.
type Profile struct {
	Basic       Basic          `json:"basic"`
	BodyMetrics BodyMetrics    `json:"body_metrics"`
	Preferences Preferences    `json:"preferences"`
	Macros      map[string]any `json:"macros"`
	Habits      map[string]any `json:"habits"`
}

// NewProfile returns the default empty profile created on first load.
func NewProfile(id, email string, now time.Time) *Profile {
	now = now.UTC()
	return &Profile{
		Basic: Basic{
			ID:              id,
			Email:           email,
			Goals:           []string{},
			ExperienceLevel: "beginner",
			JoinedDate:      now,
			LastLogin:       now,
		},
		BodyMetrics: BodyMetrics{UpdatedAt: now},
		Preferences: Preferences{
			Units:         "metric",
			Theme:         "dark",
			Language:      "en",
			Notifications: Notifications{Email: true, Push: true, Reminders: true},
		},
		Macros: map[string]any{},
		Habits: map[string]any{},
	}
}

// SectionJSON encodes one section.
func (p *Profile) SectionJSON(s Section) (json.RawMessage, error) {
	var v any
	switch s {
	case SectionBasic:
		v = p.Basic
	case SectionBodyMetrics:
		v = p.BodyMetrics
	case SectionPreferences:
		v = p.Preferences
	case SectionMacros:
		v = p.Macros
	case SectionHabits:
		v = p.Habits
	default:
		return nil, fmt.Errorf("section %q: %w", s, ErrUnknownSection)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode section %s: %w", s, err)
	}
	return data, nil
}

// MergeSection decodes data over the current value of a section. Fields
// absent from data keep their value; present fields overwrite.
func (p *Profile) MergeSection(s Section, data json.RawMessage) error {
	var target any
	switch s {
	case SectionBasic:
		target = &p.Basic
	case SectionBodyMetrics:
		target = &p.BodyMetrics
	case SectionPreferences:
		target = &p.Preferences
	case SectionMacros:
		if p.Macros == nil {
			p.Macros = map[string]any{}
		}
		target = &p.Macros
	case SectionHabits:
		if p.Habits == nil {
			p.Habits = map[string]any{}
		}
		target = &p.Habits
	default:
		return fmt.Errorf("section %q: %w", s, ErrUnknownSection)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode section %s: %v: %w", s, err, ErrInvalidSectionData)
	}
	// a JSON null resets free-form maps; keep them non-nil
	if p.Macros == nil {
		p.Macros = map[string]any{}
	}
	if p.Habits == nil {
		p.Habits = map[string]any{}
	}
	return nil
}

// Merge decodes a whole (possibly partial) profile document over p.
func (p *Profile) Merge(data json.RawMessage) error {
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("decode profile: %v: %w", err, ErrInvalidSectionData)
	}
	return nil
}

// Touch stamps the section's own modification time, where it has one.
func (p *Profile) Touch(s Section, now time.Time) {
	if s == SectionBodyMetrics {
		p.BodyMetrics.UpdatedAt = now.UTC()
	}
}

// ApplyUserMetadata copies the fields the auth provider keeps in its
// user-metadata blob onto the basic section.
func (p *Profile) ApplyUserMetadata(meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	if v, ok := meta["full_name"].(string); ok && v != "" {
		p.Basic.FullName = v
	}
	if v, ok := meta["phone"].(string); ok && v != "" {
		p.Basic.Phone = v
	}
	if v, ok := meta["avatar_url"].(string); ok && v != "" {
		p.Basic.AvatarURL = v
	}
	if nested, ok := meta["profile"].(map[string]any); ok {
		if data, err := json.Marshal(nested); err == nil {
			_ = json.Unmarshal(data, &p.Basic)
		}
	}
}
