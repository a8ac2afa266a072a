package security

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	FormulaInputs int64
}

// Detector flags user input that a spreadsheet would evaluate as a
// formula once the exported CSV is opened. Values are still stored as
// entered; the caller decides what to do with the finding.
type Detector struct {
	metrics DetectionMetrics
}

// NewDetector creates a new security detector
func NewDetector() *Detector {
	return &Detector{}
}

// formulaPrefixes start a formula (or a DDE payload) in common spreadsheet apps.
var formulaPrefixes = []string{"=", "+", "-", "@", "\t", "\r"}

// LooksLikeFormula reports whether v would be interpreted as a formula.
// Plain signed numbers such as "-4.50" are not.
func LooksLikeFormula(v string) bool {
	v = strings.TrimLeft(v, " ")
	if v == "" {
		return false
	}
	for _, p := range formulaPrefixes {
		if strings.HasPrefix(v, p) {
			if p == "+" || p == "-" {
				if _, err := decimal.NewFromString(v); err == nil {
					return false
				}
			}
			return true
		}
	}
	return false
}

// DetectFormulas returns the names of the fields whose value looks like a
// formula. fields maps field name to value.
func (d *Detector) DetectFormulas(fields map[string]string) []string {
	var flagged []string
	for _, name := range []string{"date", "category", "amount", "note"} {
		if v, ok := fields[name]; ok && LooksLikeFormula(v) {
			flagged = append(flagged, name)
		}
	}
	if len(flagged) > 0 {
		atomic.AddInt64(&d.metrics.FormulaInputs, 1)
	}
	return flagged
}

// ClientKey identifies the requesting client by remote IP. Forwarded
// headers are ignored: the server is meant to be reached directly.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		FormulaInputs: atomic.LoadInt64(&d.metrics.FormulaInputs),
	}
}
