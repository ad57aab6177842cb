package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/seat"
)

type seatApi struct {
	svc      *seat.Service
	validate *validator.Validate
}

func registerSeatAPI(g *echo.Group, deps ServerDeps) {
	api := seatApi{svc: deps.SeatSvc, validate: deps.Validate}

	sg := g.Group("/seats")
	sg.GET("", api.board)
	sg.GET("/available", api.available)
	sg.GET("/:id", api.retrieve)

	ag := g.Group("/allocations")
	ag.POST("", api.allocate)
	ag.POST("/change-shift", api.changeShift)
	ag.PUT("/:id/close", api.close)
}

// Handlers

func (api *seatApi) board(ctx echo.Context) error {
	views, err := api.svc.Board(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building seat board")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *seatApi) available(ctx echo.Context) error {
	shift := seat.Shift(core.CleanString(ctx.QueryParam("shift"), true /* lower */))
	seats, err := api.svc.AvailableSeats(ctx.Request().Context(), shift)
	if err != nil {
		return errors.Wrap(err, "querying available seats")
	}
	return ctx.JSON(http.StatusOK, seats)
}

func (api *seatApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.Detail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting seat detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *seatApi) allocate(ctx echo.Context) error {
	var data seat.NewAllocation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAllocation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	alloc, err := api.svc.Allocate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "allocating seat")
	}
	return ctx.JSON(http.StatusCreated, alloc)
}

func (api *seatApi) changeShift(ctx echo.Context) error {
	var data seat.ShiftChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ShiftChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	alloc, err := api.svc.ChangeShift(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "changing shift")
	}
	return ctx.JSON(http.StatusCreated, alloc)
}

func (api *seatApi) close(ctx echo.Context) error {
	var data seat.CloseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CloseRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	alloc, err := api.svc.Close(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "closing allocation")
	}
	return ctx.JSON(http.StatusOK, alloc)
}
