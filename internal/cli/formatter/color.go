package formatter

import (
	"fmt"
	"strings"

	"atmosfera/internal/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)

	// StyleBox frames a recommendation text.
	StyleBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(72)
)

// TierColor returns the style for a recommendation tier. Unrecognized tiers render red.
func TierColor(t models.Tier) lipgloss.Style {
	switch t {
	case models.TierOK:
		return StyleGreen
	case models.TierWarn:
		return StyleYellow
	default:
		return StyleRed
	}
}

// CategoryPill renders a colored category marker such as "● SEHAT".
func CategoryPill(c models.Category) string {
	switch c {
	case models.CategoryHealthy:
		return StyleGreen.Render("● SEHAT")
	case models.CategoryModerate:
		return StyleYellow.Render("● WASPADA")
	case models.CategoryUnhealthy:
		return StyleRed.Render("● BAHAYA")
	default:
		return StyleRed.Render("● " + c.Label())
	}
}

// ActionBox renders recommendation text in a border colored by its tier.
func ActionBox(r models.Recommendation) string {
	return StyleBox.BorderForeground(TierColor(r.Tier).GetForeground()).Render(r.Text)
}

// Header renders a section header with an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
