package api

import (
	"errors"
	"net/http"

	drepo "ChartPulse/internal/domain/repository"
	domsvc "ChartPulse/internal/domain/service"
	"ChartPulse/internal/services/marketdata"
	"ChartPulse/internal/services/progress"
	"ChartPulse/internal/services/ratelimit"
	"ChartPulse/internal/usecase"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Services bundles everything the dashboard API calls into.
type Services struct {
	Yahoo     *marketdata.Yahoo
	Crypto    *marketdata.Crypto
	Forex     *marketdata.Forex
	WorldBank *marketdata.WorldBank
	Haver     *marketdata.Haver
	Searcher  domsvc.MovementExplainer
	Events    domsvc.CriticalEventsFinder
	Runner    *usecase.BacktestRunner
	Refresher *usecase.Refresher
	Store     drepo.Storage
	Hub       *progress.Hub
}

// Handler serves the dashboard REST API over Echo.
type Handler struct {
	logger  *logger.Logger
	limiter *ratelimit.Limiter
	svc     *Services
}

func NewHandler(log *logger.Logger, svc *Services) *Handler {
	return &Handler{logger: log, limiter: ratelimit.New(), svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	if h.svc.Hub != nil {
		e.GET("/ws/backtests", h.svc.Hub.Serve)
	}

	g := e.Group("/api")
	g.GET("/health", h.Health)

	g.GET("/equities/:ticker", h.EquitySeries)

	g.GET("/crypto", h.CryptoListings)
	g.GET("/crypto/:symbol", h.CryptoSeries)

	g.GET("/forex", h.ForexListings)
	g.GET("/forex/:pair", h.ForexSeries)

	g.GET("/macro/countries", h.MacroCountries)
	g.GET("/macro/:country", h.MacroSeries)

	g.GET("/haver/databases", h.HaverDatabases)
	g.GET("/haver/series/:database", h.HaverSeries)
	g.GET("/haver/:database/:series", h.HaverSeriesData)

	g.POST("/range-stats", h.RangeStats)
	g.POST("/search", h.Search)
	g.POST("/critical-events", h.CriticalEvents)

	g.POST("/backtest", h.Backtest)
	g.GET("/backtests/:asset_class", h.BacktestSummaries)
	g.GET("/backtests/:asset_class/:symbol", h.BacktestDetail)
	g.POST("/backtests/:asset_class/refresh", h.RefreshBacktests)
}

func (h *Handler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "healthy"})
}

// respondError maps typed market data errors onto the envelope. AppErrors
// pass through with their own status, anything else becomes a 500.
func (h *Handler) respondError(c echo.Context, err error) error {
	var nf *marketdata.NotFoundError
	if errors.As(err, &nf) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	var auth *marketdata.AuthError
	if errors.As(err, &auth) {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError(err.Error()))
	}
	var bad *marketdata.InvalidTickerError
	if errors.As(err, &bad) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.AppErrorResponse(c, err)
}

// allow checks the per-client token bucket for endpoints that fan out to
// paid upstreams.
func (h *Handler) allow(c echo.Context, name string, perSec float64, burst int) bool {
	if h.limiter == nil {
		return true
	}
	if h.limiter.Allow(c.RealIP()+":"+name, perSec, burst) {
		return true
	}
	h.logger.Warn("rate limited",
		logger.String("endpoint", name),
		logger.String("remote", c.RealIP()),
	)
	return false
}

func (h *Handler) rateLimited(c echo.Context) error {
	return xhttp.AppErrorResponse(c,
		xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited, slow down", http.StatusTooManyRequests))
}
