package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"variaciones/internal/core"
)

// absentPct is rendered when a variance has no percentage.
const absentPct = "—"

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders an amount as whole dollars with thousands
// separators, e.g. "$1,234" or "-$1,234".
func formatAmount(d decimal.Decimal) string {
	rounded := d.Round(0)
	if rounded.IsNegative() {
		return "-$" + amountPrinter.Sprintf("%d", rounded.Neg().IntPart())
	}
	return "$" + amountPrinter.Sprintf("%d", rounded.IntPart())
}

// formatPct renders a percentage with one decimal, or a dash when absent.
func formatPct(p decimal.NullDecimal) string {
	if !p.Valid {
		return absentPct
	}
	return p.Decimal.StringFixed(1) + "%"
}

// rowClass styles a row by the sign of the absolute variance, whether or
// not a percentage exists.
func rowClass(v core.Variance) string {
	switch v.Sign() {
	case 1:
		return "var-over"
	case -1:
		return "var-under"
	default:
		return ""
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"amount":   formatAmount,
		"pct":      formatPct,
		"rowClass": rowClass,
		"asOf":     formatTime,
	}
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
