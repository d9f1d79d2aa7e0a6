package api

import (
	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/usecase"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

type refreshResponse struct {
	Queued []string `json:"queued"`
	Count  int      `json:"count"`
}

func (h *Handler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "backtest", 0.5, 2) {
		return h.rateLimited(c)
	}

	res, err := h.svc.Runner.Run(c.Request().Context(), req)
	if err != nil {
		// engine failures are data problems: bad dates, thin history,
		// no usable windows
		h.logger.Error("backtest run failed", logger.String("ticker", req.Ticker), logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) BacktestSummaries(c echo.Context) error {
	class := c.Param("asset_class")
	if !models.ValidAssetClass(class) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown asset class %q", class))
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), 0)

	summaries, err := h.svc.Store.AssetSummaries(c.Request().Context(), class, limit)
	if err != nil {
		h.logger.Error("backtest summaries query failed", logger.String("class", class), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, summaries)
}

func (h *Handler) BacktestDetail(c echo.Context) error {
	class := c.Param("asset_class")
	if !models.ValidAssetClass(class) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown asset class %q", class))
	}
	symbol := c.Param("symbol")
	limit := util.ParseIntDefault(c.QueryParam("limit"), 0)

	detail, err := h.svc.Store.RunDetail(c.Request().Context(), class, symbol, limit)
	if err != nil {
		h.logger.Error("backtest detail query failed",
			logger.String("class", class),
			logger.String("symbol", symbol),
			logger.Error(err),
		)
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, detail)
}

func (h *Handler) RefreshBacktests(c echo.Context) error {
	class := c.Param("asset_class")
	if class != usecase.ClassAll && !models.ValidAssetClass(class) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown asset class %q", class))
	}
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	keys, err := h.svc.Refresher.EnqueueBacktests(c.Request().Context(), usecase.RefreshOptions{
		AssetClass: class,
		Symbols:    req.Symbols,
	})
	if err != nil {
		h.logger.Error("backtest refresh enqueue failed", logger.String("class", class), logger.Error(err))
		return h.respondError(c, err)
	}

	h.logger.Info("backtests queued", logger.String("class", class), logger.Int("count", len(keys)))
	return xhttp.SuccessResponse(c, &refreshResponse{Queued: keys, Count: len(keys)})
}
