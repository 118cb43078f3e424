package models

import (
	"math"
	"strings"
)

// Category is an ISPU air-quality bucket
type Category string

const (
	CategoryHealthy   Category = "healthy"
	CategoryModerate  Category = "moderate"
	CategoryUnhealthy Category = "unhealthy"
	CategoryUnknown   Category = "unknown"
)

// categoryAliases maps normalized category text to a category.
// Lookup is exact after normalization, so "TIDAK SEHAT" never matches "SEHAT".
var categoryAliases = map[string]Category{
	"SEHAT":      CategoryHealthy,
	"BAIK":       CategoryHealthy,
	"BAIK SEHAT": CategoryHealthy,
	"HEALTHY":    CategoryHealthy,
	"GOOD":       CategoryHealthy,

	"SEDANG":         CategoryModerate,
	"WASPADA":        CategoryModerate,
	"SEDANG WASPADA": CategoryModerate,
	"MODERATE":       CategoryModerate,

	"TIDAK SEHAT":        CategoryUnhealthy,
	"SANGAT TIDAK SEHAT": CategoryUnhealthy,
	"BERBAHAYA":          CategoryUnhealthy,
	"UNHEALTHY":          CategoryUnhealthy,
	"VERY UNHEALTHY":     CategoryUnhealthy,
	"HAZARDOUS":          CategoryUnhealthy,
}

// ParseCategory resolves free category text to a Category.
// The boolean is false when the text is not recognized; the returned
// category is then CategoryUnknown, which every rule treats as unhealthy.
//
// Compound labels such as "Sedang/Waspada" resolve when every part names
// the same category; "SEHAT/TIDAK SEHAT" does not.
func ParseCategory(raw string) (Category, bool) {
	if !strings.Contains(raw, "/") {
		return parseCategoryPart(raw)
	}

	resolved := CategoryUnknown
	for _, part := range strings.Split(raw, "/") {
		c, ok := parseCategoryPart(part)
		if !ok || (resolved != CategoryUnknown && c != resolved) {
			return CategoryUnknown, false
		}
		resolved = c
	}
	return resolved, true
}

func parseCategoryPart(raw string) (Category, bool) {
	key := normalizeCategoryText(raw)
	if key == "" {
		return CategoryUnknown, false
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	// already-canonical enum values round-trip
	switch Category(strings.ToLower(key)) {
	case CategoryHealthy, CategoryModerate, CategoryUnhealthy:
		return Category(strings.ToLower(key)), true
	}
	return CategoryUnknown, false
}

func normalizeCategoryText(raw string) string {
	s := strings.ToUpper(raw)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Severity orders categories; unknown ranks with unhealthy.
func (c Category) Severity() int {
	switch c {
	case CategoryHealthy:
		return 0
	case CategoryModerate:
		return 1
	default:
		return 2
	}
}

// Label returns the ISPU label used in reports
func (c Category) Label() string {
	switch c {
	case CategoryHealthy:
		return "SEHAT"
	case CategoryModerate:
		return "SEDANG"
	case CategoryUnhealthy:
		return "TIDAK SEHAT"
	default:
		return "TIDAK DIKETAHUI"
	}
}

// ISPU PM2.5 breakpoints in µg/m³.
const (
	PM25HealthyMax  = 15.5
	PM25ModerateMax = 55.4
)

// CategoryFromPM25 derives the category from a PM2.5 concentration.
func CategoryFromPM25(v float64) Category {
	switch {
	case math.IsNaN(v) || v < 0:
		return CategoryUnknown
	case v <= PM25HealthyMax:
		return CategoryHealthy
	case v <= PM25ModerateMax:
		return CategoryModerate
	default:
		return CategoryUnhealthy
	}
}

// Tier is the severity bucket attached to a recommendation.
type Tier string

const (
	TierOK   Tier = "ok"
	TierWarn Tier = "warn"
	TierBad  Tier = "bad"
)

// Rank orders tiers; anything unrecognized ranks as bad.
func (t Tier) Rank() int {
	switch t {
	case TierOK:
		return 0
	case TierWarn:
		return 1
	default:
		return 2
	}
}

// MaxTier returns the more severe of two tiers.
func MaxTier(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// TierForCategory maps a category to its tier.
func TierForCategory(c Category) Tier {
	switch c.Severity() {
	case 0:
		return TierOK
	case 1:
		return TierWarn
	default:
		return TierBad
	}
}

type Scope string

const (
	ScopePublic Scope = "public"
	ScopePolicy Scope = "policy"
)

// Trend describes the recent PM2.5 direction at a station.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendStable  Trend = "stable"
	TrendFalling Trend = "falling"
	TrendUnknown Trend = "unknown"
)

// ParseTrend accepts the Trend values; anything else is TrendUnknown.
func ParseTrend(s string) Trend {
	switch Trend(strings.ToLower(strings.TrimSpace(s))) {
	case TrendRising:
		return TrendRising
	case TrendStable:
		return TrendStable
	case TrendFalling:
		return TrendFalling
	default:
		return TrendUnknown
	}
}
