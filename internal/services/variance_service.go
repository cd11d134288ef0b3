package services

import (
	"context"
	"fmt"
	"time"

	"variaciones/internal/core"
	"variaciones/internal/ledger"
	applog "variaciones/internal/log"
)

// SnapshotSource provides consistent reads of both ledgers.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
	Refresh(ctx context.Context) (ledger.Snapshot, error)
}

// SummaryView is the period-level table for one selected period.
type SummaryView struct {
	Period  string
	Periods []string
	Rows    []core.Variance
	Totals  core.Variance
	Source  string
	AsOf    time.Time
}

// DetailView is the category table for one period and cost center.
type DetailView struct {
	Period      string
	CostCenter  string
	CostCenters []string
	Rows        []core.Variance
	Totals      core.Variance
	Source      string
	AsOf        time.Time
}

// PageView holds both tables computed from the same snapshot.
type PageView struct {
	Summary SummaryView
	Detail  DetailView
}

// VarianceService builds variance views from a ledger snapshot. Every call
// reads one snapshot and computes entirely from it; nothing is retried.
type VarianceService struct {
	source SnapshotSource
	log    *applog.StructuredLogger
}

func NewVarianceService(source SnapshotSource, logger *applog.Logger) *VarianceService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &VarianceService{
		source: source,
		log:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentVariance)),
	}
}

func (s *VarianceService) snapshot(ctx context.Context, op string) (ledger.Snapshot, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		s.log.LogError(ctx, "Ledger snapshot unavailable", err, applog.ComponentVariance, op, nil)
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	return snap, nil
}

// Snapshot returns the current snapshot.
func (s *VarianceService) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	return s.snapshot(ctx, applog.OpRefresh)
}

// Refresh forces a reload of the ledgers.
func (s *VarianceService) Refresh(ctx context.Context) (ledger.Snapshot, error) {
	snap, err := s.source.Refresh(ctx)
	if err != nil {
		s.log.LogError(ctx, "Ledger refresh failed", err, applog.ComponentVariance, applog.OpRefresh, nil)
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	return snap, nil
}

// Periods lists the periods present in the summary, sorted.
func (s *VarianceService) Periods(ctx context.Context) ([]string, error) {
	snap, err := s.snapshot(ctx, applog.OpPeriods)
	if err != nil {
		return nil, err
	}
	l := snap.Ledgers
	return core.ListPeriods(core.BuildSummary(l.Real, l.Budget)), nil
}

// Summary returns the summary rows of period. An empty period selects the
// first one available.
func (s *VarianceService) Summary(ctx context.Context, period string) (SummaryView, error) {
	snap, err := s.snapshot(ctx, applog.OpSummary)
	if err != nil {
		return SummaryView{}, err
	}
	view := s.summaryView(snap, period)
	s.log.LogViewBuilt(ctx, applog.OpSummary, view.Period, "", len(view.Rows))
	return view, nil
}

// CostCenters lists the cost centers present in both ledgers for period.
// An empty period selects the first one available.
func (s *VarianceService) CostCenters(ctx context.Context, period string) ([]string, error) {
	snap, err := s.snapshot(ctx, applog.OpCostCenters)
	if err != nil {
		return nil, err
	}
	l := snap.Ledgers
	period = resolvePeriod(core.ListPeriods(core.BuildSummary(l.Real, l.Budget)), period)
	return core.ListCostCenters(l.Real, l.Budget, period), nil
}

// Detail returns the category rows of one period and cost center. Empty
// selections default to the first available entries.
func (s *VarianceService) Detail(ctx context.Context, period, costCenter string) (DetailView, error) {
	snap, err := s.snapshot(ctx, applog.OpDetail)
	if err != nil {
		return DetailView{}, err
	}
	l := snap.Ledgers
	period = resolvePeriod(core.ListPeriods(core.BuildSummary(l.Real, l.Budget)), period)
	view := s.detailView(snap, period, costCenter)
	s.log.LogViewBuilt(ctx, applog.OpDetail, view.Period, view.CostCenter, len(view.Rows))
	return view, nil
}

// Page computes the summary and the detail from a single snapshot.
func (s *VarianceService) Page(ctx context.Context, period, costCenter string) (PageView, error) {
	snap, err := s.snapshot(ctx, applog.OpSummary)
	if err != nil {
		return PageView{}, err
	}
	summary := s.summaryView(snap, period)
	detail := s.detailView(snap, summary.Period, costCenter)
	s.log.LogViewBuilt(ctx, applog.OpSummary, summary.Period, "", len(summary.Rows))
	s.log.LogViewBuilt(ctx, applog.OpDetail, detail.Period, detail.CostCenter, len(detail.Rows))
	return PageView{Summary: summary, Detail: detail}, nil
}

func (s *VarianceService) summaryView(snap ledger.Snapshot, period string) SummaryView {
	l := snap.Ledgers
	summary := core.BuildSummary(l.Real, l.Budget)
	periods := core.ListPeriods(summary)
	period = resolvePeriod(periods, period)

	rows := core.ForPeriod(summary, period)
	return SummaryView{
		Period:  period,
		Periods: periods,
		Rows:    rows,
		Totals:  core.Totals(rows),
		Source:  snap.Source,
		AsOf:    snap.FetchedAt,
	}
}

func (s *VarianceService) detailView(snap ledger.Snapshot, period, costCenter string) DetailView {
	l := snap.Ledgers
	costCenters := core.ListCostCenters(l.Real, l.Budget, period)
	if costCenter == "" && len(costCenters) > 0 {
		costCenter = costCenters[0]
	}

	var rows []core.Variance
	if period != "" && costCenter != "" {
		rows = core.BuildDetail(l.Real, l.Budget, period, costCenter)
	}
	return DetailView{
		Period:      period,
		CostCenter:  costCenter,
		CostCenters: costCenters,
		Rows:        rows,
		Totals:      core.Totals(rows),
		Source:      snap.Source,
		AsOf:        snap.FetchedAt,
	}
}

func resolvePeriod(periods []string, period string) string {
	if period == "" && len(periods) > 0 {
		return periods[0]
	}
	return period
}
