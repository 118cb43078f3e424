package formatter

import (
	"fmt"
	"strings"

	"atmosfera/internal/annotator"
	"atmosfera/internal/models"
	"atmosfera/internal/recommender"
	"atmosfera/internal/similarity"
)

const timeLayout = "2006-01-02 15:04"

// FormatRecommendation renders one recommendation with its tier label.
func FormatRecommendation(title, label string, r models.Recommendation) string {
	var b strings.Builder
	b.WriteString(Header(title) + "\n")
	if label != "" {
		b.WriteString(TierColor(r.Tier).Render(label) + "\n")
	}
	b.WriteString(ActionBox(r) + "\n")
	return b.String()
}

// FormatPrediction renders the hybrid prediction for a station.
func FormatPrediction(p models.HybridPrediction, policyLabel string) string {
	var b strings.Builder

	b.WriteString(Header("Stasiun "+p.StationKey) + "\n")
	fmt.Fprintf(&b, "%s  %s\n", Dim("Observasi"), p.ObservedAt.Format(timeLayout))
	fmt.Fprintf(&b, "%s  %s\n", Dim("Kategori saat ini"), CategoryPill(p.CurrentCategory))
	if p.Available {
		fmt.Fprintf(&b, "%s  %s\n", Dim("Prediksi berikutnya"), CategoryPill(p.PredictedCategory))
		fmt.Fprintf(&b, "%s  %s\n", Dim("Peluang tidak sehat"), Bold(fmt.Sprintf("%.1f%%", p.ProbabilityPercent())))
	} else {
		fmt.Fprintf(&b, "%s  %s\n", Dim("Prediksi"), StyleYellow.Render("tidak tersedia: "+p.UnavailableReason))
	}
	b.WriteString("\n")

	b.WriteString(FormatRecommendation("Rekomendasi publik", "", p.Public))
	if p.Available {
		b.WriteString(FormatRecommendation("Prakiraan", "", p.Forecast))
	}
	b.WriteString(FormatRecommendation("Rekomendasi kebijakan", policyLabel, p.Policy))

	if p.Situation.Text != "" {
		b.WriteString(Header("Situasi sekitar") + "\n")
		b.WriteString(TierColor(p.Situation.Tier).Render(p.Situation.Text) + "\n")
		if len(p.Situation.Peers) > 0 {
			rows := make([][]string, 0, len(p.Situation.Peers))
			for _, peer := range p.Situation.Peers {
				rows = append(rows, []string{peer.StationKey, fmt.Sprintf("%.2f", peer.Similarity), CategoryPill(peer.Category)})
			}
			b.WriteString(RenderTable([]string{"STASIUN", "KEMIRIPAN", "KATEGORI"}, rows))
		}
	}
	return b.String()
}

// FormatNeighbors renders the most similar stations.
func FormatNeighbors(key string, neighbors []similarity.Neighbor) string {
	var b strings.Builder
	b.WriteString(Header("Stasiun mirip "+key) + "\n")
	if len(neighbors) == 0 {
		b.WriteString(Dim("Tidak ada stasiun di atas ambang kemiripan.") + "\n")
		return b.String()
	}
	rows := make([][]string, 0, len(neighbors))
	for _, n := range neighbors {
		rows = append(rows, []string{string(n.Key), fmt.Sprintf("%.3f", n.Score), fmt.Sprintf("%d", n.Overlap)})
	}
	b.WriteString(RenderTable([]string{"STASIUN", "KORELASI", "OVERLAP"}, rows))
	return b.String()
}

// FormatStations renders the latest reading per station.
func FormatStations(stations []recommender.StationSummary) string {
	rows := make([][]string, 0, len(stations))
	for _, s := range stations {
		rows = append(rows, []string{
			s.Key,
			s.ObservedAt.Format(timeLayout),
			fmt.Sprintf("%.1f", s.PM25),
			CategoryPill(s.Category),
			string(s.Trend),
			fmt.Sprintf("%d", s.Rows),
		})
	}
	return Header("Stasiun") + "\n" + RenderTable([]string{"STASIUN", "WAKTU", "PM2.5", "KATEGORI", "TREN", "BARIS"}, rows)
}

// FormatHistory renders the recommendation log.
func FormatHistory(anns []annotator.Annotation) string {
	rows := make([][]string, 0, len(anns))
	for _, a := range anns {
		rows = append(rows, []string{
			a.Timestamp.Format(timeLayout),
			a.StationRaw,
			CategoryPill(a.Category),
			fmt.Sprintf("%.1f", a.PM25),
			TierColor(a.Public.Tier).Render(a.Public.Action),
			TierColor(a.Policy.Tier).Render(a.Policy.Action),
		})
	}
	return Header("Log rekomendasi") + "\n" +
		RenderTable([]string{"WAKTU", "STASIUN", "KATEGORI", "PM2.5", "PUBLIK", "KEBIJAKAN"}, rows)
}

// FormatKPI renders the dashboard indicators.
func FormatKPI(k annotator.KPI) string {
	var b strings.Builder
	b.WriteString(Header("Ringkasan") + "\n")
	if k.Rows == 0 {
		b.WriteString(Dim("Tidak ada data untuk periode ini.") + "\n")
		return b.String()
	}

	period := fmt.Sprintf("%d", k.FromYear)
	if k.ToYear != k.FromYear {
		period = fmt.Sprintf("%d-%d", k.FromYear, k.ToYear)
	}
	fmt.Fprintf(&b, "%s  %s\n", Dim("Periode"), period)
	fmt.Fprintf(&b, "%s  %d\n", Dim("Jumlah baris"), k.Rows)
	fmt.Fprintf(&b, "%s  %s\n", Dim("Rata-rata PM2.5"), Bold(fmt.Sprintf("%.1f µg/m³", k.GlobalPM25)))
	critical := k.CriticalStation
	if critical != annotator.NoStation {
		critical = StyleRed.Render(fmt.Sprintf("%s (%d baris tidak sehat)", critical, k.CriticalCount))
	}
	fmt.Fprintf(&b, "%s  %s\n", Dim("Stasiun kritis"), critical)
	fmt.Fprintf(&b, "%s  %s\n", Dim("Rasio sehat"), fmt.Sprintf("%.1f%%", k.HealthyRatio))

	if len(k.Monthly) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(k.Monthly))
		for _, m := range k.Monthly {
			rows = append(rows, []string{m.Month, fmt.Sprintf("%.1f", m.PM25), fmt.Sprintf("%d", m.Count)})
		}
		b.WriteString(RenderTable([]string{"BULAN", "PM2.5", "BARIS"}, rows))
	}
	return b.String()
}
