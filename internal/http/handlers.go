package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	// A malformed row still means the storage is readable.
	if _, err := s.svc.List(ctx); err != nil && !errors.Is(err, core.ErrMalformedRow) {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err != nil {
		checks["storage"] = "degraded: " + err.Error()
	} else {
		checks["storage"] = "ok"
	}

	checks["cache"] = map[string]interface{}{
		"report_entries": s.reportCache.Size(),
		"chart_entries":  s.chartCache.Size(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	expensesAdded := atomic.LoadInt64(&s.appMetrics.expensesAdded)
	cacheHits := atomic.LoadInt64(&s.appMetrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.appMetrics.cacheMisses)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_microseconds Average request duration\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP expenses_added_total Total number of expenses added\n")
	fmt.Fprintf(w, "# TYPE expenses_added_total counter\n")
	fmt.Fprintf(w, "expenses_added_total %d\n\n", expensesAdded)

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"report\"} %d\n", s.reportCache.Size())
	fmt.Fprintf(w, "cache_entries{type=\"chart\"} %d\n\n", s.chartCache.Size())

	limits := s.writeLimiter.GetMetrics()
	fmt.Fprintf(w, "# HELP write_rate_limited_total Mutating requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE write_rate_limited_total counter\n")
	fmt.Fprintf(w, "write_rate_limited_total %d\n\n", limits.Rejected)

	fmt.Fprintf(w, "# HELP formula_inputs_total Added expenses with formula-like fields\n")
	fmt.Fprintf(w, "# TYPE formula_inputs_total counter\n")
	fmt.Fprintf(w, "formula_inputs_total %d\n\n", s.detector.GetMetrics().FormulaInputs)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	noSelection, _ := core.UserMessage(core.ErrNoSelection)
	data := struct {
		Title         string
		Currency      string
		ConfirmClear  string
		ConfirmDelete string
		NoSelection   string
		ThisMonth     string
	}{
		Title:         "Personal Expense Tracker",
		Currency:      s.currency,
		ConfirmClear:  core.MsgConfirmClear,
		ConfirmDelete: core.MsgConfirmDelete,
		NoSelection:   noSelection,
		ThisMonth:     time.Now().Format("2006-01"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err.Error(), "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
