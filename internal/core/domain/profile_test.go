package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSection(t *testing.T) {
	tests := []struct {
		in      string
		want    Section
		wantErr bool
	}{
		{"basic", SectionBasic, false},
		{"profile", SectionBasic, false},
		{"metrics", SectionBodyMetrics, false},
		{" Body_Metrics ", SectionBodyMetrics, false},
		{"preferences", SectionPreferences, false},
		{"macros", SectionMacros, false},
		{"habits", SectionHabits, false},
		{"billing", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSection(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownSection))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewProfileDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewProfile("u1", "a@b.co", now)

	assert.Equal(t, "u1", p.Basic.ID)
	assert.Equal(t, "beginner", p.Basic.ExperienceLevel)
	assert.Equal(t, "metric", p.Preferences.Units)
	assert.True(t, p.Preferences.Notifications.Email)
	assert.NotNil(t, p.Macros)
	assert.NotNil(t, p.Habits)
	assert.Equal(t, now, p.Basic.JoinedDate)
}

func TestMergeSection_KeepsAbsentFields(t *testing.T) {
	p := NewProfile("u1", "a@b.co", time.Now())
	p.Basic.Phone = "+44 1234"

	err := p.MergeSection(SectionBasic, json.RawMessage(`{"full_name":"Andre Garcia","bio":"coach"}`))
	require.NoError(t, err)

	assert.Equal(t, "Andre Garcia", p.Basic.FullName)
	assert.Equal(t, "coach", p.Basic.Bio)
	assert.Equal(t, "+44 1234", p.Basic.Phone)
	assert.Equal(t, "a@b.co", p.Basic.Email)
}

func TestMergeSection_FreeFormMaps(t *testing.T) {
	p := NewProfile("u1", "", time.Now())
	require.NoError(t, p.MergeSection(SectionMacros, json.RawMessage(`{"protein":180}`)))
	require.NoError(t, p.MergeSection(SectionMacros, json.RawMessage(`{"carbs":220}`)))

	assert.Equal(t, float64(180), p.Macros["protein"])
	assert.Equal(t, float64(220), p.Macros["carbs"])

	require.NoError(t, p.MergeSection(SectionHabits, json.RawMessage(`null`)))
	assert.NotNil(t, p.Habits)
}

func TestMergeSection_InvalidData(t *testing.T) {
	p := NewProfile("u1", "", time.Now())
	err := p.MergeSection(SectionBodyMetrics, json.RawMessage(`{"current_weight":"heavy"}`))
	assert.True(t, errors.Is(err, ErrInvalidSectionData))

	err = p.MergeSection(Section("billing"), json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownSection))
}

func TestBMI(t *testing.T) {
	weight, height := 81.0, 180.0
	m := BodyMetrics{CurrentWeight: &weight, Height: &height}

	bmi, ok := m.BMI()
	require.True(t, ok)
	assert.InDelta(t, 25.0, bmi, 0.01)

	_, ok = BodyMetrics{CurrentWeight: &weight}.BMI()
	assert.False(t, ok)
}

func TestApplyUserMetadata(t *testing.T) {
	p := NewProfile("u1", "a@b.co", time.Now())
	p.ApplyUserMetadata(map[string]any{
		"full_name": "Test User",
		"phone":     "",
		"profile": map[string]any{
			"location":         "Test Lab",
			"experience_level": "intermediate",
		},
	})

	assert.Equal(t, "Test User", p.Basic.FullName)
	assert.Equal(t, "", p.Basic.Phone)
	assert.Equal(t, "Test Lab", p.Basic.Location)
	assert.Equal(t, "intermediate", p.Basic.ExperienceLevel)
}

func TestSectionKeys(t *testing.T) {
	assert.Equal(t, "gb_brutal_body_metrics", SectionKey(SectionBodyMetrics))
	assert.Equal(t, "garcia_profile_abc", ProfileKey("abc"))

	s, ok := SectionFromKey("gb_brutal_habits")
	require.True(t, ok)
	assert.Equal(t, SectionHabits, s)

	_, ok = SectionFromKey("garcia_profile_abc")
	assert.False(t, ok)
}
