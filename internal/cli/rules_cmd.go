package cli

import (
	"fmt"

	"atmosfera/internal/cli/formatter"
	"atmosfera/internal/models"

	"github.com/spf13/cobra"
)

func newPublicCmd(app *App) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "public",
		Short: "Show the public recommendation for an ISPU category",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := app.rules().PublicActionText(category)
			c, _ := models.ParseCategory(category)
			fmt.Fprintln(cmd.OutOrStdout(), formatter.CategoryPill(c))
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRecommendation("Rekomendasi publik", "", rec))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "ISPU category text, e.g. SEHAT or TIDAK SEHAT")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newPolicyCmd(app *App) *cobra.Command {
	var category, trend string
	var probability float64

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the policy recommendation for a category and unhealthy probability",
		RunE: func(cmd *cobra.Command, args []string) error {
			if probability < 0 || probability > 1 {
				return fmt.Errorf("probability must be within [0,1], got %v", probability)
			}
			r := app.rules()
			rec := r.PolicyActionText(category, probability, models.ParseTrend(trend))
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRecommendation("Rekomendasi kebijakan", r.PolicyLabel(rec.Tier), rec))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "ISPU category text")
	cmd.Flags().Float64Var(&probability, "probability", 0, "Unhealthy probability in [0,1]")
	cmd.Flags().StringVar(&trend, "trend", string(models.TrendUnknown), "PM2.5 trend: rising, stable, falling")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("probability")

	return cmd
}
