package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/internal/util"
)

type SearchHandler struct {
	Svc *search.Service
}

func (h *SearchHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.search")

	q := c.QueryParam("q")
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	_, limit := util.Calculate(page, size)

	res, err := h.Svc.Search(ctx, q, page, size)
	if err != nil {
		return failure(l, "search_error", err)
	}

	l.Info("search_success", "total", res.Total)
	return c.JSON(http.StatusOK, map[string]any{
		"data": res.Products,
		"meta": map[string]any{
			"q":           q,
			"page":        page,
			"size":        limit,
			"total":       res.Total,
			"total_pages": (res.Total + int64(limit) - 1) / int64(limit),
		},
	})
}
