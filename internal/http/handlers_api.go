package http

import (
	"errors"
	"net/http"
	"time"

	"variaciones/internal/core"
	applog "variaciones/internal/log"
	"variaciones/internal/services"
)

// varianceJSON is one table row. Amounts are exact decimal strings and
// VariancePct is null when the budget is zero.
type varianceJSON struct {
	Period      string  `json:"period,omitempty"`
	Category    string  `json:"category,omitempty"`
	CostCenter  string  `json:"cost_center,omitempty"`
	Real        string  `json:"real"`
	Budget      string  `json:"budget"`
	Variance    string  `json:"variance"`
	VariancePct *string `json:"variance_pct"`
}

type summaryJSON struct {
	Period  string         `json:"period"`
	Periods []string       `json:"periods"`
	Rows    []varianceJSON `json:"rows"`
	Totals  varianceJSON   `json:"totals"`
	Source  string         `json:"source"`
	AsOf    time.Time      `json:"as_of"`
}

type detailJSON struct {
	Period      string         `json:"period"`
	CostCenter  string         `json:"cost_center"`
	CostCenters []string       `json:"cost_centers"`
	Rows        []varianceJSON `json:"rows"`
	Totals      varianceJSON   `json:"totals"`
	Source      string         `json:"source"`
	AsOf        time.Time      `json:"as_of"`
}

type refreshJSON struct {
	Status     string    `json:"status"`
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	RealRows   int       `json:"real_rows"`
	BudgetRows int       `json:"budget_rows"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func toVarianceJSON(v core.Variance) varianceJSON {
	out := varianceJSON{
		Period:     v.Period,
		Category:   v.Category,
		CostCenter: v.CostCenter,
		Real:       v.Real.String(),
		Budget:     v.Budget.String(),
		Variance:   v.Abs.String(),
	}
	if v.Pct.Valid {
		pct := v.Pct.Decimal.String()
		out.VariancePct = &pct
	}
	return out
}

func toVarianceRows(vs []core.Variance) []varianceJSON {
	out := make([]varianceJSON, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVarianceJSON(v))
	}
	return out
}

func toSummaryJSON(v services.SummaryView) summaryJSON {
	return summaryJSON{
		Period:  v.Period,
		Periods: nonNil(v.Periods),
		Rows:    toVarianceRows(v.Rows),
		Totals:  toVarianceJSON(v.Totals),
		Source:  v.Source,
		AsOf:    v.AsOf.UTC(),
	}
}

func toDetailJSON(v services.DetailView) detailJSON {
	return detailJSON{
		Period:      v.Period,
		CostCenter:  v.CostCenter,
		CostCenters: nonNil(v.CostCenters),
		Rows:        toVarianceRows(v.Rows),
		Totals:      toVarianceJSON(v.Totals),
		Source:      v.Source,
		AsOf:        v.AsOf.UTC(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeError reports a service failure as a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	msg := "internal error"
	if errors.Is(err, core.ErrSourceUnavailable) {
		msg = core.ErrSourceUnavailable.Error()
	}
	writeJSON(w, statusFor(err), errorJSON{Error: msg})
}

func (s *Server) handleAPIPeriods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	periods, err := s.variance.Periods(ctx)
	if err != nil {
		s.logError(ctx, "Periods unavailable", err, applog.OpPeriods)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"periods": nonNil(periods)})
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := ParseSelection(r.URL.Query())

	view, err := s.variance.Summary(ctx, sel.Period)
	if err != nil {
		s.logError(ctx, "Summary unavailable", err, applog.OpSummary)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryJSON(view))
}

func (s *Server) handleAPICostCenters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := ParseSelection(r.URL.Query())

	costCenters, err := s.variance.CostCenters(ctx, sel.Period)
	if err != nil {
		s.logError(ctx, "Cost centers unavailable", err, applog.OpCostCenters)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"cost_centers": nonNil(costCenters)})
}

func (s *Server) handleAPIDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := ParseSelection(r.URL.Query())

	view, err := s.variance.Detail(ctx, sel.Period, sel.CostCenter)
	if err != nil {
		s.logError(ctx, "Detail unavailable", err, applog.OpDetail)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailJSON(view))
}
