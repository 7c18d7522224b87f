package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/remote"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/util"
)

type CatalogHandler struct {
	Catalog *catalog.Service
}

func (h *CatalogHandler) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	q := catalog.Query{
		Text:     c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
	}
	var err error
	if q.MinPrice, err = optFloat(c.QueryParam("minPrice")); err != nil {
		return badRequest(l, "get_products_error", "minPrice is not a number", err)
	}
	if q.MaxPrice, err = optFloat(c.QueryParam("maxPrice")); err != nil {
		return badRequest(l, "get_products_error", "maxPrice is not a number", err)
	}
	if q.Featured, err = optBool(c.QueryParam("featured")); err != nil {
		return badRequest(l, "get_products_error", "featured is not a boolean", err)
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	list, err := h.Catalog.Search(ctx, q)
	if err != nil {
		return failure(l, "get_products_error", err)
	}
	total := int64(len(list))

	return c.JSON(http.StatusOK, map[string]any{
		"data": util.Slice(list, offset, limit),
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "get_product_error", "id is not an integer", err)
	}
	p, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return failure(l, "get_product_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

// GetCategories lists active categories, or the children of ?parent= ("root" for top level).
func (h *CatalogHandler) GetCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.get_categories")

	parent, ok := c.QueryParams()["parent"]
	if !ok {
		list, err := h.Catalog.ListCategories(ctx, true)
		if err != nil {
			return failure(l, "get_categories_error", err)
		}
		return c.JSON(http.StatusOK, list)
	}

	var parentID *int
	if v := strings.TrimSpace(parent[0]); v != "" && v != "root" {
		id, err := optInt(v)
		if err != nil {
			return badRequest(l, "get_categories_error", "parent is not an integer", err)
		}
		parentID = id
	}
	list, err := h.Catalog.CategoriesByParent(ctx, parentID)
	if err != nil {
		return failure(l, "get_categories_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) GetCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.get_category")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "get_category_error", "id is not an integer", err)
	}
	cat, err := h.Catalog.GetCategory(ctx, id)
	if err != nil {
		return failure(l, "get_category_error", err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req catalog.ProductInput
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_create_error", "invalid body", err)
	}

	p, err := h.Catalog.CreateProduct(ctx, req)
	if err != nil {
		return failure(l, "product_create_error", err)
	}

	l.Info("create_product_success", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch_product")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "product_patch_error", "id is not an integer", err)
	}
	var req catalog.ProductPatch
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_patch_error", "invalid body", err)
	}

	p, err := h.Catalog.UpdateProduct(ctx, id, req)
	if err != nil {
		return failure(l, "product_patch_error", err)
	}

	l.Info("patch_product_success", "product_id", p.ID)
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_product")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "product_delete_error", "id is not an integer", err)
	}
	if err := h.Catalog.DeleteProduct(ctx, id); err != nil {
		return failure(l, "product_delete_error", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.create_category")

	var req catalog.CategoryInput
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "category_create_error", "invalid body", err)
	}

	cat, err := h.Catalog.CreateCategory(ctx, req)
	if err != nil {
		return failure(l, "category_create_error", err)
	}

	l.Info("create_category_success", "category_id", cat.ID)
	return c.JSON(http.StatusCreated, cat)
}

func (h *CatalogHandler) PatchCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.patch_category")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "category_patch_error", "id is not an integer", err)
	}
	var req catalog.CategoryPatch
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "category_patch_error", "invalid body", err)
	}

	cat, err := h.Catalog.UpdateCategory(ctx, id, req)
	if err != nil {
		return failure(l, "category_patch_error", err)
	}

	l.Info("patch_category_success", "category_id", cat.ID)
	return c.JSON(http.StatusOK, cat)
}

func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.delete_category")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "category_delete_error", "id is not an integer", err)
	}
	if err := h.Catalog.DeleteCategory(ctx, id); err != nil {
		return failure(l, "category_delete_error", err)
	}

	l.Info("delete_category_success", "category_id", id)
	return c.NoContent(http.StatusNoContent)
}

// ImportProducts replaces the local overrides with the remote list, narrowed by the
// same query filters the remote understands.
func (h *CatalogHandler) ImportProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.import")

	f := remote.ProductFilters{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
	var err error
	if f.MinPrice, err = optFloat(c.QueryParam("minPrice")); err != nil {
		return badRequest(l, "import_products_error", "minPrice is not a number", err)
	}
	if f.MaxPrice, err = optFloat(c.QueryParam("maxPrice")); err != nil {
		return badRequest(l, "import_products_error", "maxPrice is not a number", err)
	}
	if f.Featured, err = optBool(c.QueryParam("featured")); err != nil {
		return badRequest(l, "import_products_error", "featured is not a boolean", err)
	}

	list, err := h.Catalog.ImportRemote(ctx, f)
	if err != nil {
		return failure(l, "import_products_error", err)
	}

	l.Info("import_products_success", "count", len(list))
	return c.JSON(http.StatusOK, map[string]any{"imported": len(list), "data": list})
}

func (h *CatalogHandler) Reindex(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.reindex")

	n, err := h.Catalog.Reindex(ctx)
	if err != nil {
		return failure(l, "reindex_error", err)
	}

	l.Info("reindex_success", "count", n)
	return c.JSON(http.StatusOK, map[string]any{"indexed": n})
}
