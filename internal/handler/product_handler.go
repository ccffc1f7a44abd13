package handler

import (
	"net/http"
	"strconv"
	"strings"

	"autoparts/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /products と /part-types（公開）
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo, _ Guards) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)
	e.GET("/part-types", h.partTypes)
}

func (h *ProductHandler) list(c echo.Context) error {
	in, ok := listProductsInput(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}

	out, err := h.uc.ListProducts(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	p, err := h.uc.GetProductDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) partTypes(c echo.Context) error {
	list, err := h.uc.ListPartTypes(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// q/search, type_id/part_type_id, min_price, max_price, sort, page, size/limit
func listProductsInput(c echo.Context) (usecase.ListProductsInput, bool) {
	page, size, ok := pageParams(c, 20)
	if !ok {
		return usecase.ListProductsInput{}, false
	}
	in := usecase.ListProductsInput{
		Page:  page,
		Limit: size,
		Q:     firstQuery(c, "q", "search"),
		Sort:  c.QueryParam("sort"),
	}

	if v := firstQuery(c, "type_id", "part_type_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return usecase.ListProductsInput{}, false
		}
		in.PartTypeID = &id
	}
	if in.MinPrice, ok = queryDecimal(c, "min_price"); !ok {
		return usecase.ListProductsInput{}, false
	}
	if in.MaxPrice, ok = queryDecimal(c, "max_price"); !ok {
		return usecase.ListProductsInput{}, false
	}
	return in, true
}

func firstQuery(c echo.Context, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.QueryParam(n)); v != "" {
			return v
		}
	}
	return ""
}

func queryDecimal(c echo.Context, name string) (*decimal.Decimal, bool) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, false
	}
	return &d, true
}
