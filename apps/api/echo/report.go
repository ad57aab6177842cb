package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc}

	dg := g.Group("/dashboard")
	dg.GET("/stats", api.stats)
	dg.GET("/activity", api.activity)

	rg := g.Group("/reports")
	rg.GET("/daily-collection", api.dailyCollection)
	rg.GET("/monthly-summary", api.monthlySummary)
	rg.GET("/defaulters", api.defaulters)
	rg.GET("/seat-occupancy", api.seatOccupancy)
}

// Handlers

func (api *reportApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *reportApi) activity(ctx echo.Context) error {
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}
	activity, err := api.svc.Activity(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "listing recent activity")
	}
	return ctx.JSON(http.StatusOK, activity)
}

func (api *reportApi) dailyCollection(ctx echo.Context) error {
	date, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	collection, err := api.svc.DailyCollection(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "computing daily collection")
	}
	return ctx.JSON(http.StatusOK, collection)
}

func (api *reportApi) monthlySummary(ctx echo.Context) error {
	month, err := queryInt(ctx, "month")
	if err != nil {
		return err
	}
	year, err := queryInt(ctx, "year")
	if err != nil {
		return err
	}
	summary, err := api.svc.MonthlySummary(ctx.Request().Context(), month, year)
	if err != nil {
		return errors.Wrap(err, "computing monthly summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *reportApi) defaulters(ctx echo.Context) error {
	defaulters, err := api.svc.Pending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing defaulters")
	}
	return ctx.JSON(http.StatusOK, defaulters)
}

func (api *reportApi) seatOccupancy(ctx echo.Context) error {
	occupancy, err := api.svc.SeatOccupancy(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing seat occupancy")
	}
	return ctx.JSON(http.StatusOK, occupancy)
}
