// Package profile holds the reader profile used to personalize summaries.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/FrankUSC/WebBriefer/internal/kv"
)

// Key is the store key of the persisted profile.
const Key = "userProfile"

const (
	MinAge = 8
	MaxAge = 100

	DefaultAge      = 25
	DefaultLanguage = "en"
	DefaultStyle    = "balanced"
)

// Focus selects what a summary should emphasize.
type Focus struct {
	KeyPoints bool `json:"keyPoints" yaml:"keyPoints"`
	Numbers   bool `json:"numbers" yaml:"numbers"`
	Quotes    bool `json:"quotes" yaml:"quotes"`
	Actions   bool `json:"actions" yaml:"actions"`
}

// Profile describes the reader.
type Profile struct {
	Age               int       `json:"age" yaml:"age"`
	Occupation        string    `json:"occupation" yaml:"occupation"`
	Education         string    `json:"education" yaml:"education"`
	PreferredLanguage string    `json:"preferredLanguage" yaml:"preferredLanguage"`
	SummaryStyle      string    `json:"summaryStyle" yaml:"summaryStyle"`
	ContentFocus      Focus     `json:"contentFocus" yaml:"contentFocus"`
	CreatedAt         time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Defaults is the profile written on first use.
func Defaults(now time.Time) Profile {
	return Profile{
		Age:               DefaultAge,
		PreferredLanguage: DefaultLanguage,
		SummaryStyle:      DefaultStyle,
		ContentFocus:      Focus{KeyPoints: true},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ErrInvalidLanguage is returned for a preferred language that is not a
// two-letter ISO-639-1 code.
var ErrInvalidLanguage = errors.New("preferred language must be an ISO-639-1 code")

// Normalize clamps the age into [MinAge, MaxAge], lowercases the language and
// fills empty language and style with defaults.
func Normalize(p Profile) Profile {
	if p.Age < MinAge {
		p.Age = MinAge
	}
	if p.Age > MaxAge {
		p.Age = MaxAge
	}
	p.Occupation = strings.TrimSpace(p.Occupation)
	p.Education = strings.TrimSpace(p.Education)
	p.PreferredLanguage = strings.ToLower(strings.TrimSpace(p.PreferredLanguage))
	if p.PreferredLanguage == "" {
		p.PreferredLanguage = DefaultLanguage
	}
	p.SummaryStyle = strings.TrimSpace(p.SummaryStyle)
	if p.SummaryStyle == "" {
		p.SummaryStyle = DefaultStyle
	}
	return p
}

// Validate checks a normalized profile.
func Validate(p Profile) error {
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("age %d outside [%d, %d]", p.Age, MinAge, MaxAge)
	}
	if !IsISO6391(p.PreferredLanguage) {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, p.PreferredLanguage)
	}
	return nil
}

// IsISO6391 reports whether code is a known two-letter language code.
func IsISO6391(code string) bool {
	if len(code) != 2 {
		return false
	}
	b, err := language.ParseBase(code)
	if err != nil {
		return false
	}
	iso3 := b.ISO3()
	return b.String() == code && iso3 != "" && iso3 != "und"
}

// Repository loads and saves the profile through a kv.Store.
type Repository struct {
	Store kv.Store
	Now   func() time.Time
}

func (r *Repository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Load returns the stored profile. On first use the defaults are persisted
// and returned.
func (r *Repository) Load(ctx context.Context) (Profile, error) {
	raw, ok, err := r.Store.Get(ctx, Key)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		p := Defaults(r.now())
		if err := r.put(ctx, p); err != nil {
			return Profile{}, err
		}
		return p, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return Normalize(p), nil
}

// Save normalizes, validates and persists p. CreatedAt is kept from the
// stored profile when p does not carry one.
func (r *Repository) Save(ctx context.Context, p Profile) (Profile, error) {
	p = Normalize(p)
	if err := Validate(p); err != nil {
		return Profile{}, err
	}
	now := r.now()
	if p.CreatedAt.IsZero() {
		if prev, ok, err := r.Store.Get(ctx, Key); err == nil && ok {
			var old Profile
			if json.Unmarshal(prev, &old) == nil {
				p.CreatedAt = old.CreatedAt
			}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	}
	p.UpdatedAt = now
	if err := r.put(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (r *Repository) put(ctx context.Context, p Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := r.Store.Set(ctx, Key, b); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
