package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Tag is a normalized topic label. Slug is derived from Name; names that
// slugify alike get a numeric suffix ("c", "c-2").
type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	PostCount   int64     `gorm:"not null;default:0;index" json:"postCount"`
	Followers   []User    `gorm:"many2many:tag_followers;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeSave normalizes the name and regenerates the slug unless the current
// one is already a suffixed form of it.
func (t *Tag) BeforeSave(_ *gorm.DB) error {
	t.Name = NormalizeTagName(t.Name)
	if !SlugDerivesFrom(t.Slug, t.Name) {
		t.Slug = Slugify(t.Name)
	}
	return nil
}

// NormalizeTagName strips a leading '#', trims and lowercases. Empty means "drop".
func NormalizeTagName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, "#")
	return strings.ToLower(strings.TrimSpace(name))
}

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)
	slugDashes  = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases, turns whitespace into dashes, strips anything that is
// not a letter, digit, underscore or dash, collapses dash runs and trims
// dashes at both ends. A name with nothing left becomes "tag".
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "tag"
	}
	return s
}

// SlugCandidate is the n-th slug tried for name: the plain slug for n <= 1,
// then slug-2, slug-3 and so on.
func SlugCandidate(name string, n int) string {
	base := Slugify(name)
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// SlugDerivesFrom reports whether slug is Slugify(name) or a numbered variant of it.
func SlugDerivesFrom(slug, name string) bool {
	base := Slugify(name)
	if slug == base {
		return true
	}
	suffix, ok := strings.CutPrefix(slug, base+"-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(suffix)
	return err == nil && n >= 2 && strconv.Itoa(n) == suffix
}

// NormalizeTagNames normalizes names and drops empties and duplicates, keeping first-seen order.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		n := NormalizeTagName(raw)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
