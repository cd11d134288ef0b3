package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()
	fetched := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	NewHTMXResponse().
		TriggerLedgersRefreshed("sheets", fetched).
		TriggerSuccessNotification("Datos actualizados.").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}
	for _, part := range []string{
		`"ledgers:refreshed"`,
		`"source":"sheets"`,
		`"fetched_at":"2024-03-01T09:30:00Z"`,
		`"show-notification"`,
		`"type":"success"`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		Status(http.StatusAccepted).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "service unavailable",
			builder:    ServiceUnavailableError("Sin datos"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `<div class="error" role="alert">Sin datos</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("<b>boom</b>"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error" role="alert">&lt;b&gt;boom&lt;/b&gt;</div>`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Periodo no encontrado"),
			wantStatus: http.StatusNotFound,
			wantBody:   `<div class="error" role="alert">Periodo no encontrado</div>`,
		},
		{
			name:       "success",
			builder:    SuccessResponse("Listo"),
			wantStatus: http.StatusOK,
			wantBody:   `<div class="success" role="alert">Listo</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}
