package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"spendlog/internal/chart"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/services"
)

type tableView struct {
	Expenses []core.Expense
	Total    string
	Error    string
}

type chartView struct {
	Title  string
	SVG    template.HTML
	Slices []chart.Slice
	Notice string
}

type reportView struct {
	Month  string
	Report core.MonthReport
	Total  string
	Text   string
	Notice string
}

// renderHTML executes a partial into a string so the caller can attach
// HX-Trigger headers before anything is written.
func (s *Server) renderHTML(ctx context.Context, name string, data any) (string, error) {
	if s.templates == nil {
		return "", errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			log.FieldError, err.Error(),
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", name)
		return "", err
	}
	return buf.String(), nil
}

// notice answers a failed action. User errors become a 422 with a toast;
// anything else is logged and reported as a generic failure.
func (s *Server) notice(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	msg, isUser := core.UserMessage(err)
	if !isUser {
		log.FromContext(ctx).ErrorContext(ctx, "Action failed", log.FieldError, err.Error())
		InternalServerError("Something went wrong, please try again.").
			TriggerErrorNotification("Something went wrong, please try again.").
			Write(w)
		return
	}

	resp := UnprocessableEntityError(msg)
	if errors.Is(err, core.ErrNoSelection) || errors.Is(err, core.ErrNotFound) {
		resp.TriggerWarningNotification(msg)
	} else {
		resp.TriggerErrorNotification(msg)
	}
	resp.Write(w)
}

// handleListExpenses renders the table partial with the running total.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := tableView{Total: formatTotal(s.currency, decimal.Zero)}
	resp := NewHTMXResponse()

	listing, err := s.svc.List(ctx)
	if err != nil {
		msg, isUser := core.UserMessage(err)
		if !isUser {
			s.notice(w, r, err)
			return
		}
		view.Error = msg
		resp.TriggerErrorNotification(msg)
	} else {
		view.Expenses = listing.Expenses
		view.Total = formatTotal(s.currency, listing.Total)
	}

	body, err := s.renderHTML(ctx, "expenses_table.html", view)
	if err != nil {
		InternalServerError("Error rendering expenses").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	form := ParseExpenseForm(r.PostForm)
	if flagged := s.detector.DetectFormulas(form.Fields()); len(flagged) > 0 {
		// stored as entered
		log.FromContext(ctx).WarnContext(ctx, "Expense input looks like a spreadsheet formula",
			"fields", flagged,
			log.FieldComponent, log.ComponentSecurity)
	}
	e, err := s.svc.Add(ctx, form.Date, form.Category, form.Amount, form.Note)
	if err != nil {
		log.FromContext(ctx).InfoContext(ctx, "Expense rejected",
			log.FieldError, err.Error(),
			log.FieldCategory, truncate(form.Category, 64),
			log.FieldAmount, truncate(form.Amount, 32))
		s.notice(w, r, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.expensesAdded, 1)
	s.invalidateCaches(ctx)

	log.FromContext(ctx).InfoContext(ctx, "Expense created successfully",
		log.NewFields().WithExpense(e).WithOperation(log.OpAppend).ToSlice()...)

	NewHTMXResponse().
		TriggerFormReset().
		TriggerExpensesChanged(services.ActionAdd.String()).
		TriggerSuccessNotification(core.MsgAdded).
		Write(w)
}

func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.svc.ClearAll(ctx); err != nil {
		s.notice(w, r, err)
		return
	}
	s.invalidateCaches(ctx)

	NewHTMXResponse().
		TriggerExpensesChanged(services.ActionClearAll.String()).
		TriggerSuccessNotification(core.MsgCleared).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	selected, err := ParseSelection(parser)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Undecodable selection", log.FieldError, err.Error())
		BadRequestError("Invalid selection").Write(w)
		return
	}

	if err := s.svc.Delete(ctx, selected); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The table is stale; let it reload.
			s.invalidateCaches(ctx)
			msg, _ := core.UserMessage(err)
			UnprocessableEntityError(msg).
				TriggerExpensesChanged(services.ActionDeleteOne.String()).
				TriggerWarningNotification(msg).
				Write(w)
			return
		}
		s.notice(w, r, err)
		return
	}
	s.invalidateCaches(ctx)

	NewHTMXResponse().
		TriggerExpensesChanged(services.ActionDeleteOne.String()).
		TriggerSuccessNotification(core.MsgDeleted).
		Write(w)
}

// categorySlices returns the chart wedges. Storage is read on every call;
// only the layout is cached, keyed on the snapshot version.
func (s *Server) categorySlices(ctx context.Context) ([]chart.Slice, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if slices, found := s.chartCache.Get(snap.Version); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		log.FromContext(ctx).DebugContext(ctx, "Chart cache hit", log.FieldComponent, log.ComponentCache)
		return slices, nil
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	totals, err := core.CategoryTotals(snap.Rows)
	if err != nil {
		return nil, err
	}
	slices, err := chart.Pie(totals)
	if err != nil {
		return nil, err
	}
	s.chartCache.Set(snap.Version, slices)
	return slices, nil
}

func (s *Server) handlePieChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := chartView{Title: chart.DefaultTitle}
	resp := NewHTMXResponse()

	slices, err := s.categorySlices(ctx)
	switch {
	case errors.Is(err, core.ErrNoData):
		view.Notice = core.MsgNoChartData
		resp.TriggerInfoNotification(core.MsgNoChartData)
	case err != nil:
		s.notice(w, r, err)
		return
	default:
		var svg bytes.Buffer
		if err := chart.RenderSVG(&svg, chart.DefaultTitle, slices); err != nil {
			s.notice(w, r, err)
			return
		}
		// RenderSVG escapes every text node it writes.
		view.SVG = template.HTML(svg.String())
		view.Slices = slices
	}

	body, err := s.renderHTML(ctx, "pie_chart.html", view)
	if err != nil {
		InternalServerError("Error rendering chart").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

// monthReport returns the report for a validated month. Like the chart it
// re-reads storage and caches per month and snapshot version.
func (s *Server) monthReport(ctx context.Context, month string) (core.MonthReport, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return core.MonthReport{}, err
	}
	key := month + "@" + snap.Version
	if report, found := s.reportCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		log.FromContext(ctx).DebugContext(ctx, "Report cache hit", log.FieldMonth, month, log.FieldComponent, log.ComponentCache)
		return report, nil
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	report, err := core.MonthlyReport(snap.Rows, month)
	if err != nil {
		return core.MonthReport{}, err
	}
	s.reportCache.Set(key, report)
	return report, nil
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, answered := ParseMonthQuery(r.URL.Query())
	if !answered {
		// An empty prompt cancels the report.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	month, err := core.ParseMonth(raw)
	if err != nil {
		s.notice(w, r, err)
		return
	}

	view := reportView{Month: month}
	resp := NewHTMXResponse()

	report, err := s.monthReport(ctx, month)
	switch {
	case errors.Is(err, core.ErrNoData):
		view.Notice = core.NoMonthData(month)
		resp.TriggerInfoNotification(view.Notice)
	case err != nil:
		s.notice(w, r, err)
		return
	default:
		view.Report = report
		view.Total = core.FormatAmount(s.currency, report.Total)
		view.Text = report.Text(s.currency)
	}

	body, err := s.renderHTML(ctx, "monthly_report.html", view)
	if err != nil {
		InternalServerError("Error rendering report").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

// handleExport streams every record in the storage file format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var buf bytes.Buffer
	if err := s.svc.Export(ctx, &buf); err != nil {
		s.notice(w, r, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Expenses exported", log.FieldOperation, log.OpExport, "bytes", buf.Len())

	NewHTMXResponse().
		Header("Content-Type", "text/csv; charset=utf-8").
		Header("Content-Disposition", `attachment; filename="expenses.csv"`).
		Body(buf.Bytes()).
		Write(w)
}
