package cli

import (
	"context"
	"fmt"
	"sync"

	"atmosfera/internal/recommender"
	"atmosfera/internal/rules"

	"github.com/spf13/cobra"
)

// App holds what CLI commands need. State is built on first use so that
// commands working from rules alone never load the dataset.
type App struct {
	Rules *rules.Engine
	Load  recommender.Loader

	once  sync.Once
	state *recommender.State
	err   error
}

// State returns the engine state, loading it once.
func (a *App) State(ctx context.Context) (*recommender.State, error) {
	a.once.Do(func() {
		if a.Load == nil {
			a.err = fmt.Errorf("no dataset configured")
			return
		}
		a.state, a.err = a.Load(ctx)
	})
	return a.state, a.err
}

func (a *App) rules() *rules.Engine {
	if a.Rules == nil {
		return rules.Default()
	}
	return a.Rules
}

// NewRootCmd creates the top-level "atmosfera" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "atmosfera",
		Short:         "Air quality recommendations for Jakarta monitoring stations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newPredictCmd(app),
		newSimilarCmd(app),
		newStationsCmd(app),
		newHistoryCmd(app),
		newKPICmd(app),
		newExportCmd(app),
		newPublicCmd(app),
		newPolicyCmd(app),
	)

	return root
}
