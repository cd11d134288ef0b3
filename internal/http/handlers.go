package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"variaciones/internal/core"
	applog "variaciones/internal/log"
	"variaciones/internal/services"
)

// Messages shown to users. Details stay in the logs.
const (
	msgSourceUnavailable = "No se pudieron cargar los datos de REAL y BUDGET. Inténtalo de nuevo más tarde."
	msgRenderFailed      = "No se pudo generar la página."
	msgRefreshed         = "Datos actualizados."
)

// indexData feeds index.html.
type indexData struct {
	Presentation
	Page  *services.PageView
	Error string
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready only when templates are loaded and a ledger
// snapshot can be obtained.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	snap, err := s.variance.Snapshot(ctx)
	if err != nil {
		s.logError(ctx, "Readiness check failed", err, applog.OpRefresh)
		checks["ledgers"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledgers"] = map[string]interface{}{
			"source":      snap.Source,
			"fetched_at":  snap.FetchedAt.UTC().Format(time.RFC3339),
			"real_rows":   len(snap.Ledgers.Real),
			"budget_rows": len(snap.Ledgers.Budget),
		}
	}
	checks["security"] = s.security.snapshot()

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		s.logError(ctx, "Templates not loaded", errors.New("templates not loaded"), applog.OpRender)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	sel := ParseSelection(r.URL.Query())
	data := indexData{Presentation: s.presentation}
	status := http.StatusOK

	page, err := s.variance.Page(ctx, sel.Period, sel.CostCenter)
	if err != nil {
		s.logError(ctx, "Variance page unavailable", err, applog.OpSummary)
		data.Error = userMessage(err)
		status = statusFor(err)
	} else {
		data.Page = &page
	}

	s.render(w, r, status, "index.html", data)
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := ParseSelection(r.URL.Query())

	view, err := s.variance.Summary(ctx, sel.Period)
	if err != nil {
		s.logError(ctx, "Summary unavailable", err, applog.OpSummary)
		ErrorResponse(statusFor(err), userMessage(err)).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "summary", view)
}

func (s *Server) handleDetailPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := ParseSelection(r.URL.Query())

	view, err := s.variance.Detail(ctx, sel.Period, sel.CostCenter)
	if err != nil {
		s.logError(ctx, "Detail unavailable", err, applog.OpDetail)
		ErrorResponse(statusFor(err), userMessage(err)).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "detail", view)
}

// handleRefresh drops the cached snapshot and loads a new one. htmx callers
// get a banner plus a refresh event; others get JSON.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := s.variance.Refresh(ctx)
	if err != nil {
		s.logError(ctx, "Ledger refresh failed", err, applog.OpRefresh)
		if isHTMX(r) {
			ErrorResponse(statusFor(err), userMessage(err)).
				TriggerErrorNotification(userMessage(err)).
				Write(w)
			return
		}
		writeError(w, err)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Ledgers refreshed",
		applog.FieldSource, snap.Source,
		applog.FieldFetchedAt, snap.FetchedAt)

	if isHTMX(r) {
		SuccessResponse(msgRefreshed).
			TriggerLedgersRefreshed(snap.Source, snap.FetchedAt).
			TriggerSuccessNotification(msgRefreshed).
			Write(w)
		return
	}
	writeJSON(w, http.StatusOK, refreshJSON{
		Status:     "refreshed",
		Source:     snap.Source,
		FetchedAt:  snap.FetchedAt.UTC(),
		RealRows:   len(snap.Ledgers.Real),
		BudgetRows: len(snap.Ledgers.Budget),
	})
}

// render executes a template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	if s.templates == nil {
		InternalServerError(msgRenderFailed).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logError(r.Context(), "Template execution failed", err, applog.OpRender)
		InternalServerError(msgRenderFailed).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, core.ErrSourceUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func userMessage(err error) string {
	if errors.Is(err, core.ErrSourceUnavailable) {
		return msgSourceUnavailable
	}
	return msgRenderFailed
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
