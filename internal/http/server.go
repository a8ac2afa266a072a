package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/cache"
	"spendlog/internal/chart"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/middleware/ratelimit"
	"spendlog/internal/middleware/security"
	"spendlog/internal/middleware/trace"
	"spendlog/internal/services"
	appweb "spendlog/web"
)

const (
	reportCacheSize = 24 // months
	chartCacheSize  = 4
)

// Options tunes a Server. Zero values fall back to defaults.
type Options struct {
	Currency string
	CacheTTL time.Duration
	Logger   *log.Logger

	// WriteRateLimit caps changes per minute per client; 0 disables it.
	WriteRateLimit int
}

type appMetrics struct {
	uptime        time.Time
	expensesAdded int64
	cacheHits     int64
	cacheMisses   int64
}

type Server struct {
	http.Server
	templates *template.Template
	svc       *services.ExpenseService
	currency  string
	logger    *log.Logger

	// Report data keyed on the storage snapshot version. Entries for old
	// versions are never served again; mutations purge them early.
	reportCache  *cache.LRUCache[core.MonthReport]
	chartCache   *cache.LRUCache[[]chart.Slice]
	cacheManager *cache.Manager

	traceMiddleware *trace.Middleware
	writeLimiter    *ratelimit.Limiter
	detector        *security.Detector
	appMetrics      *appMetrics
	shutdownOnce    sync.Once
}

// route binds one tracker action to its endpoint.
type route struct {
	action  services.Action
	method  string
	pattern string
	handler http.HandlerFunc
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.ExpenseService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	currency := opts.Currency
	if currency == "" {
		currency = "₹"
	}

	mux := http.NewServeMux()
	s := &Server{
		svc:             svc,
		currency:        currency,
		logger:          logger.WithComponent(log.ComponentHTTP),
		reportCache:     cache.NewLRUCache[core.MonthReport](reportCacheSize, opts.CacheTTL),
		chartCache:      cache.NewLRUCache[[]chart.Slice](chartCacheSize, opts.CacheTTL),
		cacheManager:    cache.NewManager(logger.WithComponent(log.ComponentCache).Logger),
		traceMiddleware: trace.NewMiddleware(logger),
		writeLimiter:    ratelimit.NewLimiter(ratelimit.Config{Limit: opts.WriteRateLimit, Period: time.Minute}),
		detector:        security.NewDetector(),
		appMetrics:      &appMetrics{uptime: time.Now()},
	}
	s.cacheManager.Register(s.reportCache)
	s.cacheManager.Register(s.chartCache)
	if opts.CacheTTL > 0 {
		s.cacheManager.StartCleanup(opts.CacheTTL)
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err.Error(), log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	for _, rt := range s.routes() {
		mux.Handle(rt.pattern, s.withAction(rt))
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(headers.Middleware(log.ComponentMiddleware(log.ComponentHTTP)(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// routes is the action table shared with the CLI's sub-commands.
func (s *Server) routes() []route {
	return []route{
		{services.ActionLoad, http.MethodGet, "/ui/expenses", s.handleListExpenses},
		{services.ActionAdd, http.MethodPost, "/expenses", s.handleCreateExpense},
		{services.ActionClearAll, http.MethodPost, "/expenses/clear", s.handleClearExpenses},
		{services.ActionDeleteOne, http.MethodPost, "/expenses/delete", s.handleDeleteExpense},
		{services.ActionPieChart, http.MethodGet, "/ui/pie-chart", s.handlePieChart},
		{services.ActionMonthlyReport, http.MethodGet, "/ui/monthly-report", s.handleMonthlyReport},
		{services.ActionExport, http.MethodGet, "/export.csv", s.handleExport},
	}
}

// withAction enforces the route method, throttles mutating actions and
// tags the request logger with the action name.
func (s *Server) withAction(rt route) http.Handler {
	var h http.Handler = rt.handler
	if rt.action.Mutates() && s.writeLimiter.Enabled() {
		h = s.writeLimiter.Middleware(security.ClientKey, s.handleRateLimited)(h)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if resp := RequireMethod(r, rt.method); resp != nil {
			resp.Write(w)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldAction, rt.action.String())
		h.ServeHTTP(w, r.WithContext(log.NewContext(r.Context(), logger)))
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Write rate limit exceeded",
		log.FieldClientIP, security.ClientKey(r),
		log.FieldComponent, log.ComponentSecurity)
	ErrorResponse(http.StatusTooManyRequests, "Too many changes").
		TriggerWarningNotification("Too many changes, please wait a moment.").
		Write(w)
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return core.FormatAmount(s.currency, d)
		},
		"selection": encodeSelection,
		"currency": func() string {
			return s.currency
		},
	}
}

// invalidateCaches drops entries made unreachable by a mutation.
func (s *Server) invalidateCaches(ctx context.Context) {
	s.cacheManager.InvalidateAll()
	log.FromContext(ctx).DebugContext(ctx, "Report caches invalidated", log.FieldComponent, log.ComponentCache)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.writeLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
