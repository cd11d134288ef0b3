package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variaciones/internal/cache"
	"variaciones/internal/core"
	"variaciones/internal/ledger"
	"variaciones/internal/ledger/memory"
	applog "variaciones/internal/log"
	"variaciones/internal/services"
)

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Load(context.Context) (core.Ledgers, error) {
	return core.Ledgers{}, errors.New("spreadsheet unreachable")
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func newTestServer(t *testing.T, src ledger.Source, opts Options) *Server {
	t.Helper()
	cached := ledger.NewCachedSource(src, cache.NewLRUCache[ledger.Snapshot](4, time.Minute), time.Second)
	svc := services.NewVarianceService(cached, quietLogger())
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func sampleServer(t *testing.T) *Server {
	return newTestServer(t, memory.New(memory.Sample()), Options{
		Presentation: Presentation{Title: "Variaciones de prueba", Subtitle: "Real vs Presupuesto"},
	})
}

func do(srv *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersBothTables(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "Variaciones de prueba")
	assert.Contains(t, body, "Real vs Presupuesto")
	assert.Contains(t, body, `class="layout-wide"`)
	assert.Contains(t, body, "Resumen 2024-01")
	assert.Contains(t, body, "Detalle TI")
	assert.Contains(t, body, "$215,000")
	assert.Contains(t, body, "23.3%")
	assert.Contains(t, body, "—")
	assert.Contains(t, body, `class="var-over"`)
	assert.Contains(t, body, `class="var-under"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestSummaryColoursRowsWithoutPercentage(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/ui/summary?period=2024-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Regexp(t, `<tr class="var-over">\s*<td>Consultoría</td>`, rr.Body.String())
}

func TestIndexHonoursSelection(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/?period=2024-02&cost_center=Ventas", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Resumen 2024-02")
	assert.Contains(t, body, "Detalle Ventas · 2024-02")
	assert.Contains(t, body, "Marketing")
}

func TestIndexCenteredLayout(t *testing.T) {
	srv := newTestServer(t, memory.New(memory.Sample()), Options{
		Presentation: Presentation{Layout: LayoutCentered},
	})

	rr := do(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `class="layout-centered"`)
	assert.Contains(t, rr.Body.String(), "Análisis de Variaciones")
}

func TestIndexShowsSingleErrorWhenSourceFails(t *testing.T) {
	srv := newTestServer(t, brokenSource{}, Options{})

	rr := do(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := rr.Body.String()
	assert.Equal(t, 1, strings.Count(body, `class="error"`))
	assert.Contains(t, body, msgSourceUnavailable)
	assert.NotContains(t, body, "<table")
	assert.NotContains(t, body, "spreadsheet unreachable")
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv := sampleServer(t)
	rr := do(srv, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPartials(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/ui/summary?period=2024-02", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Resumen 2024-02")
	assert.NotContains(t, rr.Body.String(), "<html")

	rr = do(srv, http.MethodGet, "/ui/detail?period=2024-01&cost_center=Ventas", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Detalle Ventas · 2024-01")
	assert.Contains(t, rr.Body.String(), "Viajes")

	rr = do(srv, http.MethodGet, "/ui/detail?period=2024-01&cost_center=Direcci%C3%B3n", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sin datos")
}

func TestPartialErrorBanner(t *testing.T) {
	srv := newTestServer(t, brokenSource{}, Options{})

	for _, path := range []string{"/ui/summary", "/ui/detail"} {
		rr := do(srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
		assert.Contains(t, rr.Body.String(), `<div class="error" role="alert">`, path)
	}
}

func TestAPISummary(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/api/summary?period=2024-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got summaryJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "2024-01", got.Period)
	assert.Equal(t, []string{"2024-01", "2024-02"}, got.Periods)
	assert.Equal(t, "memory", got.Source)
	require.Len(t, got.Rows, 5)

	byCategory := map[string]varianceJSON{}
	for _, row := range got.Rows {
		byCategory[row.Category] = row
	}

	consult := byCategory["Consultoría"]
	assert.Equal(t, "4000", consult.Real)
	assert.Equal(t, "0", consult.Budget)
	assert.Equal(t, "4000", consult.Variance)
	assert.Nil(t, consult.VariancePct)

	software := byCategory["Software"]
	assert.Equal(t, "-800", software.Variance)
	require.NotNil(t, software.VariancePct)
	assert.Equal(t, "-10", *software.VariancePct)
}

func TestAPISummaryNullPercentageInRawJSON(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/api/summary?period=2024-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"variance_pct":null`)
}

func TestAPIPeriodsAndCostCenters(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/api/periods", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"periods":["2024-01","2024-02"]}`, rr.Body.String())

	rr = do(srv, http.MethodGet, "/api/cost-centers?period=2024-02", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cost_centers":["TI","Ventas"]}`, rr.Body.String())

	rr = do(srv, http.MethodGet, "/api/cost-centers?period=1999-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cost_centers":[]}`, rr.Body.String())
}

func TestAPIDetail(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/api/detail?period=2024-01&cost_center=TI", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got detailJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "TI", got.CostCenter)
	assert.Equal(t, []string{"TI", "Ventas"}, got.CostCenters)

	categories := make([]string, 0, len(got.Rows))
	for _, row := range got.Rows {
		categories = append(categories, row.Category)
	}
	assert.Equal(t, []string{"Consultoría", "Formación", "Nómina", "Software"}, categories)
	assert.Equal(t, "106200", got.Totals.Real)
	assert.Equal(t, "107000", got.Totals.Budget)
}

func TestAPIReturns503WhenSourceFails(t *testing.T) {
	srv := newTestServer(t, brokenSource{}, Options{})

	for _, path := range []string{"/api/periods", "/api/summary", "/api/cost-centers", "/api/detail"} {
		rr := do(srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
		assert.JSONEq(t, `{"error":"ledger source unavailable"}`, rr.Body.String(), path)
	}
}

func TestRefreshJSON(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got refreshJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "refreshed", got.Status)
	assert.Equal(t, "memory", got.Source)
	assert.Equal(t, 10, got.RealRows)
	assert.Equal(t, 11, got.BudgetRows)
}

func TestRefreshHTMX(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodPost, "/api/refresh", map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"ledgers:refreshed"`)
	assert.Contains(t, rr.Body.String(), `class="success"`)
}

func TestRefreshFailure(t *testing.T) {
	srv := newTestServer(t, brokenSource{}, Options{})

	rr := do(srv, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(srv, http.MethodPost, "/api/refresh", map[string]string{"HX-Request": "true"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"error"`)
}

func TestRefreshIsRateLimited(t *testing.T) {
	srv := newTestServer(t, memory.New(memory.Sample()), Options{RateLimit: 2})

	assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/refresh", nil).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/refresh", nil).Code)

	rr := do(srv, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/periods", nil).Code)
}

func TestRefreshRejectsGet(t *testing.T) {
	srv := sampleServer(t)
	rr := do(srv, http.MethodGet, "/api/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthAndReady(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = do(srv, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got struct {
		Status string                     `json:"status"`
		Checks map[string]json.RawMessage `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "ready", got.Status)
	assert.Contains(t, string(got.Checks["ledgers"]), `"source":"memory"`)
}

func TestReadyFailsWithoutLedgers(t *testing.T) {
	srv := newTestServer(t, brokenSource{}, Options{})

	rr := do(srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"not_ready"`)
}

func TestStaticAssets(t *testing.T) {
	srv := sampleServer(t)

	rr := do(srv, http.MethodGet, "/static/style.css", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "var-over")
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := sampleServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))
}
