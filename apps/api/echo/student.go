package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/report"
	"github.com/trezcool/maktaba/core/student"
)

type studentApi struct {
	svc      *student.Service
	payments *payment.Service
	reports  *report.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		payments: deps.PaymentSvc,
		reports:  deps.ReportSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/students")
	sg.GET("", api.query)
	sg.POST("", api.create)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/leave", api.leave)
	dg.GET("/payment-status", api.paymentStatus)
	dg.GET("/next-period", api.nextPeriod)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

// retrieve returns the student's profile: allocations, payments & overrides included.
func (api *studentApi) retrieve(ctx echo.Context) error {
	profile, err := api.reports.StudentProfile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) leave(ctx echo.Context) error {
	var data student.LeaveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LeaveRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	std, err := api.svc.Leave(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "marking student as left")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) paymentStatus(ctx echo.Context) error {
	standing, err := api.payments.CurrentStatus(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting payment status")
	}
	return ctx.JSON(http.StatusOK, standing)
}

func (api *studentApi) nextPeriod(ctx echo.Context) error {
	period, err := api.payments.NextPeriod(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "proposing next period")
	}
	return ctx.JSON(http.StatusOK, period)
}
