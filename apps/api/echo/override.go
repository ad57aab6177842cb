package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core/override"
)

type overrideApi struct {
	svc      *override.Service
	validate *validator.Validate
}

func registerOverrideAPI(g *echo.Group, deps ServerDeps) {
	api := overrideApi{svc: deps.OverrideSvc, validate: deps.Validate}

	og := g.Group("/overrides")
	og.GET("", api.query)
	og.POST("", api.create)
	og.DELETE("/:id", api.destroy)
}

// Handlers

func (api *overrideApi) create(ctx echo.Context) error {
	var data override.NewOverride
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOverride")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ovr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating override")
	}
	return ctx.JSON(http.StatusCreated, ovr)
}

func (api *overrideApi) query(ctx echo.Context) error {
	var filter override.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	overrides, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying overrides")
	}
	return ctx.JSON(http.StatusOK, overrides)
}

func (api *overrideApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting override")
	}
	return ctx.NoContent(http.StatusNoContent)
}
