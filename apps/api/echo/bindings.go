package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/reportal/core"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other` ("-" for descending order).
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
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

// bindPage reads `?page=n`, defaulting to the first page. Pages hold core.DefaultPageSize items.
func bindPage(ctx echo.Context) core.Page {
	num, err := strconv.Atoi(ctx.QueryParam(pageParam))
	if err != nil || num < 1 {
		num = 1
	}
	return core.Page{Number: num, Size: core.DefaultPageSize}
}

// PaginatedResponse is a page of a list endpoint.
type PaginatedResponse struct {
	Count      int         `json:"count"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	Results    interface{} `json:"results"`
}

func newPaginatedResponse(page core.Page, count int, results interface{}) PaginatedResponse {
	pages := (count + page.Size - 1) / page.Size
	if pages == 0 {
		pages = 1
	}
	return PaginatedResponse{Count: count, Page: page.Number, TotalPages: pages, Results: results}
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	// IDsRequest selects users for bulk actions.
	IDsRequest struct {
		IDs []string `json:"ids" query:"id"`
	}
)
