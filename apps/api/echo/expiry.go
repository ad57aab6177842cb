package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
)

type expiryApi struct {
	engine *expiry.Engine
	today  core.Clock
}

func registerExpiryAPI(g *echo.Group, deps ServerDeps) {
	api := expiryApi{engine: deps.Expiry, today: deps.Today}

	eg := g.Group("/expirations")
	eg.GET("/preview", api.preview)
	eg.POST("/run", api.run)
}

type PreviewResponse struct {
	Date     core.Date          `json:"date"`
	Count    int                `json:"count"`
	Students []expiry.Candidate `json:"students"`
}

// Handlers

func (api *expiryApi) preview(ctx echo.Context) error {
	today := api.today()
	candidates, err := api.engine.Preview(ctx.Request().Context(), today)
	if err != nil {
		return errors.Wrap(err, "previewing expirations")
	}
	return ctx.JSON(http.StatusOK, PreviewResponse{Date: today, Count: len(candidates), Students: candidates})
}

// run triggers the sweep now, the same one the scheduler runs at midnight.
func (api *expiryApi) run(ctx echo.Context) error {
	res, err := api.engine.Run(ctx.Request().Context(), api.today())
	if err != nil {
		return errors.Wrap(err, "running expiration sweep")
	}
	return ctx.JSON(http.StatusOK, res)
}
