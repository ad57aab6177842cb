package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/maktaba/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryDate reads an optional YYYY-MM-DD query param (zero Date when absent).
func queryDate(ctx echo.Context, name string) (core.Date, error) {
	var d core.Date
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return d, nil
	}
	if err := d.UnmarshalParam(val); err != nil {
		return d, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a date formatted as YYYY-MM-DD"})
	}
	return d, nil
}

// queryInt reads an optional integer query param (0 when absent).
func queryInt(ctx echo.Context, name string) (int, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a number"})
	}
	return n, nil
}
