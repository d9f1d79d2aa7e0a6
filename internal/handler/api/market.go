package api

import (
	"ChartPulse/internal/domain/models"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

func (h *Handler) EquitySeries(c echo.Context) error {
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := c.Param("ticker")

	data, err := h.svc.Yahoo.FetchSeries(c.Request().Context(), ticker, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.Error("equity series fetch failed", logger.String("ticker", ticker), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *Handler) CryptoListings(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Crypto.Listings())
}

func (h *Handler) CryptoSeries(c echo.Context) error {
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := c.Param("symbol")

	data, err := h.svc.Crypto.FetchSeries(c.Request().Context(), symbol, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.Error("crypto series fetch failed", logger.String("symbol", symbol), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *Handler) ForexListings(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Forex.Listings())
}

func (h *Handler) ForexSeries(c echo.Context) error {
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair := c.Param("pair")

	data, err := h.svc.Forex.FetchSeries(c.Request().Context(), pair, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.Error("forex series fetch failed", logger.String("pair", pair), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *Handler) MacroCountries(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.WorldBank.Countries())
}

func (h *Handler) MacroSeries(c echo.Context) error {
	req := &models.MacroQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	country := c.Param("country")

	data, err := h.svc.WorldBank.FetchGDP(c.Request().Context(), country, "", req.StartYear, req.EndYear)
	if err != nil {
		h.logger.Error("macro series fetch failed", logger.String("country", country), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *Handler) HaverDatabases(c echo.Context) error {
	dbs, err := h.svc.Haver.Databases(c.Request().Context())
	if err != nil {
		h.logger.Error("haver databases fetch failed", logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, dbs)
}

func (h *Handler) HaverSeries(c echo.Context) error {
	database := c.Param("database")

	series, err := h.svc.Haver.Series(c.Request().Context(), database)
	if err != nil {
		h.logger.Error("haver series listing failed", logger.String("database", database), logger.Error(err))
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, series)
}

func (h *Handler) HaverSeriesData(c echo.Context) error {
	database := c.Param("database")
	series := c.Param("series")

	data, err := h.svc.Haver.FetchSeries(c.Request().Context(), database, series)
	if err != nil {
		h.logger.Error("haver series fetch failed",
			logger.String("database", database),
			logger.String("series", series),
			logger.Error(err),
		)
		return h.respondError(c, err)
	}
	return xhttp.SuccessResponse(c, data)
}
