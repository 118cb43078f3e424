package rules

import (
	"fmt"
	"math"

	"atmosfera/internal/logging"
	"atmosfera/internal/metrics"
	"atmosfera/internal/models"
)

// Thresholds configures where the policy tier escalates.
type Thresholds struct {
	// Elevated and Emergency are unhealthy-probability cut-offs in [0,1].
	Elevated  float64 `yaml:"elevated" json:"elevated" validate:"gte=0,lte=1"`
	Emergency float64 `yaml:"emergency" json:"emergency" validate:"gte=0,lte=1,gtefield=Elevated"`

	// PM25Elevated and PM25Emergency escalate historical rows by concentration (µg/m³, exclusive).
	PM25Elevated  float64 `yaml:"pm25_elevated" json:"pm25_elevated" validate:"gte=0"`
	PM25Emergency float64 `yaml:"pm25_emergency" json:"pm25_emergency" validate:"gte=0,gtefield=PM25Elevated"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Elevated:      0.4,
		Emergency:     0.7,
		PM25Elevated:  models.PM25HealthyMax,
		PM25Emergency: models.PM25ModerateMax,
	}
}

// Validate checks threshold ordering.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Elevated) || math.IsNaN(t.Emergency) || t.Elevated < 0 || t.Emergency > 1 || t.Elevated > t.Emergency {
		return fmt.Errorf("probability thresholds must satisfy 0 <= elevated (%v) <= emergency (%v) <= 1", t.Elevated, t.Emergency)
	}
	if math.IsNaN(t.PM25Elevated) || math.IsNaN(t.PM25Emergency) || t.PM25Elevated < 0 || t.PM25Elevated > t.PM25Emergency {
		return fmt.Errorf("pm25 thresholds must satisfy 0 <= elevated (%v) <= emergency (%v)", t.PM25Elevated, t.PM25Emergency)
	}
	return nil
}

// Engine maps categories, probabilities and trends to tiered recommendations.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
	catalog    Catalog
}

// NewEngine validates thresholds and catalog.
func NewEngine(th Thresholds, catalog Catalog) (*Engine, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}
	return &Engine{thresholds: th, catalog: catalog}, nil
}

// Default returns an engine with default thresholds and the Indonesian catalog.
func Default() *Engine {
	return &Engine{thresholds: DefaultThresholds(), catalog: Indonesian}
}

func (e *Engine) Thresholds() Thresholds { return e.thresholds }
func (e *Engine) Catalog() Catalog       { return e.catalog }

// PublicTier: healthy ok, moderate warn, anything else bad.
func (e *Engine) PublicTier(c models.Category) models.Tier {
	return models.TierForCategory(c)
}

// PublicAction is the act-now recommendation for the measured category.
func (e *Engine) PublicAction(c models.Category) models.Recommendation {
	tier := e.PublicTier(c)
	return e.recommend(models.ScopePublic, tier, publicActions, text(e.catalog.Public, tier))
}

// ForecastAction is the public recommendation for a predicted category.
func (e *Engine) ForecastAction(c models.Category) models.Recommendation {
	tier := e.PublicTier(c)
	return e.recommend(models.ScopePublic, tier, publicActions, text(e.catalog.Forecast, tier))
}

// PublicActionText parses raw category text and returns its public action.
// Unrecognized text is reported as a data-quality signal and resolves to bad.
func (e *Engine) PublicActionText(raw string) models.Recommendation {
	return e.PublicAction(e.parse(raw, "public_action"))
}

// PolicyActionText is PolicyAction for raw category text.
func (e *Engine) PolicyActionText(raw string, probability float64, trend models.Trend) models.Recommendation {
	return e.PolicyAction(e.parse(raw, "policy_action"), probability, trend)
}

func (e *Engine) parse(raw, source string) models.Category {
	c, ok := models.ParseCategory(raw)
	if !ok {
		logging.Warn().Str("category", raw).Str("source", source).Msg("unrecognized category, treating as unhealthy")
		metrics.RecordUnknownCategory(source)
	}
	return c
}

// PolicyTier resolves the policy-maker tier. A NaN probability is treated as
// the worst case; otherwise probability is clamped to [0,1]. For a fixed
// category and trend the tier never decreases as probability grows.
func (e *Engine) PolicyTier(c models.Category, probability float64, trend models.Trend) models.Tier {
	if math.IsNaN(probability) {
		return models.TierBad
	}
	p := math.Max(0, math.Min(1, probability))

	switch {
	case c.Severity() >= 2 || p >= e.thresholds.Emergency:
		return models.TierBad
	case c.Severity() == 1 || p >= e.thresholds.Elevated || trend == models.TrendRising:
		return models.TierWarn
	default:
		return models.TierOK
	}
}

// PolicyAction is the policy-maker recommendation for a category and probability.
func (e *Engine) PolicyAction(c models.Category, probability float64, trend models.Trend) models.Recommendation {
	tier := e.PolicyTier(c, probability, trend)
	return e.policy(tier)
}

// PolicyActionCategory is the policy recommendation from the category alone,
// used when no probability is available.
func (e *Engine) PolicyActionCategory(c models.Category) models.Recommendation {
	return e.policy(models.TierForCategory(c))
}

// PolicyActionHistorical derives the policy recommendation from a single row:
// the worse of its category tier and its PM2.5 concentration tier.
func (e *Engine) PolicyActionHistorical(m models.Measurement) models.Recommendation {
	tier := models.MaxTier(models.TierForCategory(m.Category), e.pm25Tier(m.PM25))
	return e.policy(tier)
}

// PolicyLabel is the short label (RUTIN, MITIGASI, DARURAT) for a policy tier.
func (e *Engine) PolicyLabel(t models.Tier) string {
	return text(e.catalog.PolicyLabel, t)
}

func (e *Engine) pm25Tier(v float64) models.Tier {
	switch {
	case math.IsNaN(v) || v < 0:
		return models.TierBad
	case v > e.thresholds.PM25Emergency:
		return models.TierBad
	case v > e.thresholds.PM25Elevated:
		return models.TierWarn
	default:
		return models.TierOK
	}
}

func (e *Engine) policy(tier models.Tier) models.Recommendation {
	return e.recommend(models.ScopePolicy, tier, policyActions, text(e.catalog.Policy, tier))
}

func (e *Engine) recommend(scope models.Scope, tier models.Tier, actions map[models.Tier]string, txt string) models.Recommendation {
	action, ok := actions[tier]
	if !ok {
		tier = models.TierBad
		action = actions[models.TierBad]
	}
	return models.Recommendation{Scope: scope, Tier: tier, Action: action, Text: txt}
}
