package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/adamsim/internal/model"
	"github.com/verte-zerg/adamsim/internal/store"
)

// History contains saved runs and their per-policy summaries.
type History struct {
	Runs      []model.RunRecord
	Summaries map[string][]model.Summary
}

// BuildHistory loads saved runs matching cfg, newest first.
func BuildHistory(ctx context.Context, st *store.Store, cfg model.HistoryConfig) (History, error) {
	runs, err := st.ListRuns(ctx, cfg)
	if err != nil {
		return History{}, err
	}
	h := History{Runs: runs, Summaries: make(map[string][]model.Summary, len(runs))}
	for _, run := range runs {
		sums, err := st.ListSummaries(ctx, run.ID)
		if err != nil {
			return History{}, err
		}
		h.Summaries[run.ID] = sums
	}
	return h, nil
}

// RenderHistory prints each saved run followed by its summary table.
func RenderHistory(w io.Writer, h History) error {
	if len(h.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No saved runs found.")
		return err
	}
	for i, run := range h.Runs {
		if i > 0 {
			if _, err := fmt.Fprintln(w, ""); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s  %s  seed=%d  trials=%d  operator=%s (%s)  conditions=%d/%ds\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.ID,
			run.Seed,
			run.Trials,
			run.Profile.Name,
			run.Profile.Strategy,
			run.Params.Conditions,
			run.Params.HorizonSec,
		); err != nil {
			return err
		}
		if err := renderSummaryTable(w, h.Summaries[run.ID]); err != nil {
			return err
		}
	}
	return nil
}
