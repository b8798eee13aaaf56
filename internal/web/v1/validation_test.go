package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

func TestSanitizeValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"section data", fmt.Errorf("decode: %w", domain.ErrInvalidSectionData), "Invalid profile data"},
		{"decoder detail", errors.New("json: cannot unmarshal string into Go value of type float64"), "Invalid request"},
		{"eof", errors.New("unexpected EOF"), "Invalid request"},
		{"short safe message", errors.New("invalid email"), "invalid email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeValidationError(tt.err))
		})
	}
}

func TestValidateSection(t *testing.T) {
	tests := []struct {
		section domain.Section
		body    string
		want    string // "" means valid
	}{
		{domain.SectionBasic, `{"avatar_url":"https://cdn.test/a.png","experience_level":"advanced"}`, ""},
		{domain.SectionBasic, `{"avatar_url":"not a url"}`, "avatar_url must be a valid URL"},
		{domain.SectionBasic, `{"experience_level":"pro"}`, "experience_level must be one of: beginner, intermediate, advanced"},
		{domain.SectionBodyMetrics, `{"current_weight":0.5,"height":170}`, ""},
		{domain.SectionBodyMetrics, `{"height":-4}`, "height is out of range"},
		{domain.SectionPreferences, `{"language":"pt","units":"metric"}`, ""},
		{domain.SectionPreferences, `{"language":"fr"}`, "language must be one of: en, pt, es"},
		{domain.SectionHabits, `{"water":"3l"}`, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.section)+" "+tt.body, func(t *testing.T) {
			err := validateSection(tt.section, json.RawMessage(tt.body))
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrInvalidSectionData))
			assert.Equal(t, tt.want, sanitizeValidationError(err))
		})
	}
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "avatar_url", snakeCase("AvatarURL"))
	assert.Equal(t, "body_fat_percentage", snakeCase("BodyFatPercentage"))
	assert.Equal(t, "email", snakeCase("Email"))
}
