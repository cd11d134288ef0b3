package http

import (
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"variaciones/internal/core"
)

const (
	paramPeriod     = "period"
	paramCostCenter = "cost_center"

	maxParamLength = 128
)

// ParseSelection extracts the period and cost center from query values.
// Missing values are left empty so the service picks its defaults.
func ParseSelection(query url.Values) core.Selection {
	return core.Selection{
		Period:     queryParam(query, paramPeriod),
		CostCenter: queryParam(query, paramCostCenter),
	}
}

func queryParam(query url.Values, key string) string {
	v := sanitizeInput(query.Get(key))
	if len(v) > maxParamLength {
		v = truncate(v, maxParamLength)
	}
	return v
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
