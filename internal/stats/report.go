package stats

import (
	"context"

	"github.com/verte-zerg/preconsol/internal/model"
)

// Lister loads stored estimates.
type Lister interface {
	ListEstimates(ctx context.Context, cfg model.HistoryConfig) ([]model.EstimateRecord, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Records   []model.EstimateRecord
	Summaries []SampleSummary
}

// BuildReport loads estimates matching cfg and summarizes them.
func BuildReport(ctx context.Context, st Lister, cfg model.HistoryConfig) (Report, error) {
	recs, err := st.ListEstimates(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Records:   recs,
		Summaries: Summarize(recs),
	}, nil
}
