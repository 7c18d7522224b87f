package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
)

// Readiness reports whether the backing store answers.
type Readiness func(c echo.Context) error

type Deps struct {
	Guard *auth.Guard

	AuthHandler     *handlers.AuthHandler
	CatalogHandler  *handlers.CatalogHandler
	SearchHandler   *handlers.SearchHandler
	CartHandler     *handlers.CartHandler
	CheckoutHandler *handlers.CheckoutHandler
	OrderHandler    *handlers.OrderHandler
	PaymentHandler  *handlers.PaymentHandler

	Gatherer prometheus.Gatherer
	Ready    Readiness
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	g := d.Guard
	v1 := e.Group("/api/v1")

	v1.POST("/auth/login", d.AuthHandler.Login)
	v1.POST("/auth/register", d.AuthHandler.Register)
	v1.POST("/auth/logout", d.AuthHandler.Logout, g.OptionalAuth)
	v1.GET("/auth/me", d.AuthHandler.Me, g.RequireAuth)
	v1.PATCH("/auth/me", d.AuthHandler.UpdateMe, g.RequireAuth)

	v1.GET("/products", d.CatalogHandler.GetProducts)
	v1.GET("/products/:id", d.CatalogHandler.GetProduct)
	v1.GET("/categories", d.CatalogHandler.GetCategories)
	v1.GET("/categories/:id", d.CatalogHandler.GetCategory)
	v1.GET("/search", d.SearchHandler.Search)

	cart := v1.Group("/cart", g.OptionalAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.Clear)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PUT("/items/:id", d.CartHandler.SetQuantity)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.POST("/sync", d.CartHandler.Sync)

	co := v1.Group("/checkout", g.RequireAuth)
	co.POST("", d.CheckoutHandler.PlaceOrder)
	co.GET("/quote", d.CheckoutHandler.Quote)
	co.GET("/state", d.CheckoutHandler.State)
	co.POST("/method", d.CheckoutHandler.SelectMethod)

	orders := v1.Group("/orders", g.RequireAuth)
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	admin := v1.Group("/admin", g.RequireAdmin)
	admin.POST("/products", d.CatalogHandler.CreateProduct)
	admin.PATCH("/products/:id", d.CatalogHandler.PatchProduct)
	admin.DELETE("/products/:id", d.CatalogHandler.DeleteProduct)
	admin.POST("/products/import", d.CatalogHandler.ImportProducts)
	admin.POST("/products/reindex", d.CatalogHandler.Reindex)
	admin.POST("/categories", d.CatalogHandler.CreateCategory)
	admin.PATCH("/categories/:id", d.CatalogHandler.PatchCategory)
	admin.DELETE("/categories/:id", d.CatalogHandler.DeleteCategory)
	admin.GET("/orders", d.OrderHandler.AdminGetOrders)
	admin.PATCH("/orders/:id/status", d.OrderHandler.AdminSetStatus)
	admin.GET("/payments/stats", d.PaymentHandler.Stats)
}
