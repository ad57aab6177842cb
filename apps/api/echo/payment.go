package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/report"
)

type paymentApi struct {
	svc      *payment.Service
	reports  *report.Service
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, deps ServerDeps) {
	api := paymentApi{svc: deps.PaymentSvc, reports: deps.ReportSvc, validate: deps.Validate}

	pg := g.Group("/payments")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/pending", api.pending)
	pg.PUT("/:id", api.update)
}

// Handlers

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	payments, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) update(ctx echo.Context) error {
	var data payment.UpdatePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

// pending lists the defaulters: seated students whose latest period is over (or who never paid).
func (api *paymentApi) pending(ctx echo.Context) error {
	defaulters, err := api.reports.Pending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending payments")
	}
	return ctx.JSON(http.StatusOK, defaulters)
}
