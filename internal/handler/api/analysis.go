package api

import (
	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/services/timeseries"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type rangeStatsResponse struct {
	Range       *timeseries.DateRange `json:"range"`
	Stats       *models.RangeStats    `json:"stats"`
	Description string                `json:"description"`
}

func (h *Handler) RangeStats(c echo.Context) error {
	req := &models.RangeStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if len(req.Timestamps) != len(req.Values) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("timestamps and values length mismatch"))
	}

	points := timeseries.ToChartPoints(req.Timestamps, req.Values)
	r, err := timeseries.SelectRange(points, req.StartIndex, req.EndIndex)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	if r == nil {
		// single-point selection clears the range
		return xhttp.SuccessResponse(c, nil)
	}

	ticker := req.Ticker
	if ticker == "" {
		ticker = "the series"
	}
	stats := timeseries.Stats(points, r)
	stats.Description = timeseries.DescribeChange(ticker, points, r, stats)

	return xhttp.SuccessResponse(c, &rangeStatsResponse{
		Range:       r,
		Stats:       stats,
		Description: stats.Description,
	})
}

func (h *Handler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "search", 1, 3) {
		return h.rateLimited(c)
	}

	res, err := h.svc.Searcher.ExplainMovement(c.Request().Context(),
		req.Ticker, req.Query, req.StartDate, req.EndDate, req.ChangeDescription)
	if err != nil {
		h.logger.Error("movement search failed", logger.String("ticker", req.Ticker), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) CriticalEvents(c echo.Context) error {
	req := &models.CriticalEventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "events", 1, 3) {
		return h.rateLimited(c)
	}

	res, err := h.svc.Events.FindCriticalEvents(c.Request().Context(),
		req.Ticker, req.StartDate, req.EndDate, req.NumEvents)
	if err != nil {
		h.logger.Error("critical events search failed", logger.String("ticker", req.Ticker), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
