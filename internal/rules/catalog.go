package rules

import (
	"fmt"
	"strings"

	"atmosfera/internal/models"
)

// Action identifiers attached to recommendations, independent of language.
const (
	ActionNormal       = "normal-activity"
	ActionLimitOutdoor = "limit-outdoor"
	ActionProtect      = "protect-and-stay-indoors"

	ActionRoutine    = "routine"
	ActionMitigation = "mitigation"
	ActionEmergency  = "emergency"
)

var (
	publicActions = map[models.Tier]string{
		models.TierOK:   ActionNormal,
		models.TierWarn: ActionLimitOutdoor,
		models.TierBad:  ActionProtect,
	}
	policyActions = map[models.Tier]string{
		models.TierOK:   ActionRoutine,
		models.TierWarn: ActionMitigation,
		models.TierBad:  ActionEmergency,
	}
)

// Catalog holds the human-facing text for every tier. Tier decisions never
// depend on it, so catalogs can be swapped per deployment or language.
type Catalog struct {
	Name string

	Public      map[models.Tier]string
	Forecast    map[models.Tier]string
	Policy      map[models.Tier]string
	PolicyLabel map[models.Tier]string

	// Situational warning templates
	NoComparable      string
	NoneAboveFloor    string // %.2f floor
	PeerWorse         string // %s peer, %s peer category, %.2f similarity, %s target category
	PeersSameOrBetter string // %d peers considered
}

// Indonesian is the default catalog.
var Indonesian = Catalog{
	Name: "id",
	Public: map[models.Tier]string{
		models.TierOK:   "Kualitas udara baik. Aktivitas luar ruangan dapat dilakukan seperti biasa.",
		models.TierWarn: "Waspada. Batasi aktivitas berat di luar ruangan, terutama bagi kelompok sensitif.",
		models.TierBad:  "Udara tidak sehat. Gunakan masker, kurangi aktivitas luar ruangan, dan lindungi kelompok rentan.",
	},
	Forecast: map[models.Tier]string{
		models.TierOK:   "Prediksi 24 jam: udara diperkirakan sehat. Tidak perlu tindakan khusus.",
		models.TierWarn: "Prediksi 24 jam: udara diperkirakan sedang. Siapkan masker dan pantau kondisi.",
		models.TierBad:  "Prediksi 24 jam: udara diperkirakan TIDAK SEHAT. Lakukan pencegahan lebih awal (masker, kurangi mobilitas).",
	},
	Policy: map[models.Tier]string{
		models.TierOK:   "Lanjutkan pemantauan rutin kualitas udara dan pelaporan berkala.",
		models.TierWarn: "PERKETAT UJI EMISI kendaraan dan awasi sumber emisi industri di sekitar stasiun.",
		models.TierBad:  "TINDAKAN DARURAT: terbitkan peringatan publik, batasi lalu lintas kendaraan dan aktivitas industri.",
	},
	PolicyLabel: map[models.Tier]string{
		models.TierOK:   "RUTIN",
		models.TierWarn: "MITIGASI",
		models.TierBad:  "DARURAT",
	},
	NoComparable:      "Tidak ada stasiun pembanding yang tersedia untuk stasiun ini.",
	NoneAboveFloor:    "Tidak ada stasiun dengan kemiripan di atas %.2f.",
	PeerWorse:         "Stasiun serupa %s sedang %s (kemiripan %.2f), lebih buruk dari kondisi saat ini (%s). Risiko dapat meningkat.",
	PeersSameOrBetter: "%d stasiun serupa berada pada kondisi yang sama atau lebih baik.",
}

// English mirrors Indonesian for non-Indonesian audiences.
var English = Catalog{
	Name: "en",
	Public: map[models.Tier]string{
		models.TierOK:   "Air quality is good. Outdoor activity can continue as usual.",
		models.TierWarn: "Caution. Limit strenuous outdoor activity, especially for sensitive groups.",
		models.TierBad:  "Unhealthy air. Wear a mask, reduce outdoor activity and protect vulnerable groups.",
	},
	Forecast: map[models.Tier]string{
		models.TierOK:   "24h forecast: air expected to be healthy. No special action needed.",
		models.TierWarn: "24h forecast: moderate air expected. Keep masks ready and monitor conditions.",
		models.TierBad:  "24h forecast: UNHEALTHY air expected. Take precautions early (masks, reduced travel).",
	},
	Policy: map[models.Tier]string{
		models.TierOK:   "Continue routine air-quality monitoring and periodic reporting.",
		models.TierWarn: "TIGHTEN EMISSIONS TESTING for vehicles and inspect industrial sources near the station.",
		models.TierBad:  "EMERGENCY DIRECTIVE: issue a public alert, restrict vehicle traffic and industrial activity.",
	},
	PolicyLabel: map[models.Tier]string{
		models.TierOK:   "ROUTINE",
		models.TierWarn: "MITIGATION",
		models.TierBad:  "EMERGENCY",
	},
	NoComparable:      "No comparable station is available for this station.",
	NoneAboveFloor:    "No station has similarity above %.2f.",
	PeerWorse:         "Similar station %s is currently %s (similarity %.2f), worse than the current condition (%s). Risk may rise.",
	PeersSameOrBetter: "%d similar stations are in the same or better condition.",
}

// CatalogByName returns a built-in catalog; empty selects Indonesian.
func CatalogByName(name string) (Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "id":
		return Indonesian, nil
	case "en":
		return English, nil
	default:
		return Catalog{}, fmt.Errorf("unknown rules catalog %q", name)
	}
}

func (c Catalog) validate() error {
	for _, tier := range []models.Tier{models.TierOK, models.TierWarn, models.TierBad} {
		if c.Public[tier] == "" || c.Forecast[tier] == "" || c.Policy[tier] == "" {
			return fmt.Errorf("catalog %q has no text for tier %s", c.Name, tier)
		}
	}
	return nil
}

// text looks up a tier, falling back to the bad entry for unknown tiers.
func text(m map[models.Tier]string, t models.Tier) string {
	if s, ok := m[t]; ok {
		return s
	}
	return m[models.TierBad]
}
