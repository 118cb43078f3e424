package cli

import (
	"errors"
	"fmt"

	"atmosfera/internal/cli/formatter"
	"atmosfera/internal/predictor"

	"github.com/spf13/cobra"
)

func newPredictCmd(app *App) *cobra.Command {
	var stationName string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Show the hybrid prediction and recommendations for a station",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.State(cmd.Context())
			if err != nil {
				return err
			}
			key, err := st.Resolve(stationName)
			if err != nil {
				return err
			}

			res, err := st.Recommend(key)
			if err != nil && !errors.Is(err, predictor.ErrMissingFeature) && !errors.Is(err, predictor.ErrModelUnavailable) {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPrediction(res, st.Rules().PolicyLabel(res.Policy.Tier)))
			return nil
		},
	}

	cmd.Flags().StringVar(&stationName, "station", "", "Station name or key")
	_ = cmd.MarkFlagRequired("station")

	return cmd
}

func newSimilarCmd(app *App) *cobra.Command {
	var stationName string
	var k int

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "List stations whose PM2.5 history moves with the given station",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.State(cmd.Context())
			if err != nil {
				return err
			}
			key, err := st.Resolve(stationName)
			if err != nil {
				return err
			}
			neighbors, err := st.Similar(key, k)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatNeighbors(string(key), neighbors))
			return nil
		},
	}

	cmd.Flags().StringVar(&stationName, "station", "", "Station name or key")
	cmd.Flags().IntVarP(&k, "top", "k", 0, "Number of stations (default from config)")
	_ = cmd.MarkFlagRequired("station")

	return cmd
}

func newStationsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "Show the latest reading for every station",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.State(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatStations(st.Stations()))
			return nil
		},
	}
}
