// Package server assembles the gin engine: middleware, templates and every
// route.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/handlers"
	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/web"
)

// Handlers is everything the routes dispatch to.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Artists    *handlers.ResourceHandler[models.Artist]
	Products   *handlers.ResourceHandler[models.Product]
	Posts      *handlers.ResourceHandler[models.Post]
	Videos     *handlers.ResourceHandler[models.Video]
	Media      *handlers.ResourceHandler[models.Media]
	Comments   *handlers.ResourceHandler[models.Comment]
	Engagement *handlers.EngagementHandler
	Cart       *handlers.CartHandler
	Checkout   *handlers.CheckoutHandler
	Payments   *handlers.PaymentHandler
	Orders     *handlers.OrderHandler
	Downloads  *handlers.DownloadHandler
	Health     *handlers.HealthHandler
	Feed       *handlers.FeedHandler
	WebSocket  *handlers.WebSocketHandler
	Site       *web.Site
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// AllowAnyOrigin is for local development only.
	AllowAnyOrigin bool
}

// New builds the engine. It fails only when the templates do not parse.
func New(opts Options, h Handlers, logger *zap.Logger) (*gin.Engine, error) {
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	if c, ok := corsConfig(opts); ok {
		r.Use(cors.New(c))
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	auth := middleware.AuthMiddleware(opts.JWTSecret)
	optional := middleware.OptionalAuth(opts.JWTSecret)
	admin := []gin.HandlerFunc{auth, middleware.RequireAdmin()}

	r.GET("/rss.xml", h.Feed.RSS)

	// All API routes under /api
	api := r.Group("/api")
	{
		api.GET("/health", h.Health.Health)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
		}
		api.GET("/me", auth, h.Auth.Me)
		api.GET("/me/orders", auth, h.Orders.MyOrders)

		resource(api.Group("/artists"), h.Artists, optional, admin)
		resource(api.Group("/products"), h.Products, optional, admin)
		resource(api.Group("/posts"), h.Posts, optional, admin)
		resource(api.Group("/videos"), h.Videos, optional, admin)
		resource(api.Group("/media"), h.Media, optional, admin)

		comments := api.Group("/comments")
		{
			comments.GET("", optional, h.Comments.List)
			comments.GET("/:id", optional, h.Comments.Get)
			comments.POST("", auth, h.Comments.Create)
			comments.PUT("/:id", append(admin, h.Comments.Update)...)
			comments.DELETE("/:id", append(admin, h.Comments.Delete)...)
		}

		api.GET("/ratings", h.Engagement.ListRatings)
		api.GET("/ratings/summary", h.Engagement.RatingSummary)
		api.POST("/ratings", auth, h.Engagement.Rate)
		api.GET("/votes", h.Engagement.ListVotes)
		api.GET("/votes/summary", h.Engagement.VoteSummary)
		api.POST("/votes", auth, h.Engagement.Vote)

		cart := api.Group("/cart", optional)
		{
			cart.GET("", h.Cart.Get)
			cart.PUT("", h.Cart.Save)
			cart.DELETE("", h.Cart.Clear)
		}

		api.POST("/checkout", optional, h.Checkout.Checkout)

		payments := api.Group("/payments", optional)
		{
			payments.POST("/stripe", h.Payments.StartStripe)
			payments.POST("/paypal", h.Payments.StartPayPal)
			payments.POST("/paypal/capture", h.Payments.CapturePayPal)
			payments.POST("/midtrans", h.Payments.StartMidtrans)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/stripe", h.Payments.StripeWebhook)
			webhooks.POST("/midtrans", h.Payments.MidtransWebhook)
		}

		api.GET("/downloads/:item_id", optional, h.Downloads.Download)
		api.GET("/downloads/token/:token", h.Downloads.ByToken)

		orders := api.Group("/orders")
		{
			orders.GET("/lookup", h.Orders.Lookup)
			orders.GET("", append(admin, h.Orders.List)...)
			orders.GET("/:id", append(admin, h.Orders.Get)...)
			orders.PUT("/:id", append(admin, h.Orders.Update)...)
		}

		api.GET("/admin/ws", h.WebSocket.ServeWs)
	}

	site := h.Site
	r.GET("/", site.Home)
	r.GET("/artists", site.ArtistList)
	r.GET("/artists/:slug", site.ArtistPage)
	r.GET("/news", site.NewsList)
	r.GET("/news/:slug", site.NewsPage)
	r.GET("/shop", site.Shop)
	r.GET("/shop/:slug", site.ProductPage)
	r.GET("/videos", site.VideoList)
	r.GET("/checkout/success", site.CheckoutSuccess)
	r.GET("/checkout/cancel", site.CheckoutCancel)

	r.GET(web.LoginPath, site.LoginForm)
	r.POST(web.LoginPath, site.Login)
	r.GET("/admin/logout", site.Logout)
	adminPages := r.Group("/admin", middleware.AdminCookieAuth(opts.JWTSecret, web.LoginPath))
	{
		adminPages.GET("", site.Dashboard)
		adminPages.GET("/orders", site.OrderList)
		adminPages.GET("/orders/:id", site.OrderPage)
		adminPages.POST("/orders/:id", site.UpdateOrder)
		adminPages.GET("/products", site.ProductList)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
			return
		}
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Title":    "Not found",
			"Message":  "That page does not exist.",
			"SiteName": site.Name,
		})
	})

	return r, nil
}

// Crud is the handler set resource registers.
type Crud interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// resource mounts list/get for everyone (admins see unpublished rows) and
// writes for admins.
func resource(g *gin.RouterGroup, h Crud, optional gin.HandlerFunc, admin []gin.HandlerFunc) {
	g.GET("", optional, h.List)
	g.GET("/:id", optional, h.Get)
	g.POST("", append(admin, h.Create)...)
	g.PUT("/:id", append(admin, h.Update)...)
	g.DELETE("/:id", append(admin, h.Delete)...)
}

func corsConfig(opts Options) (cors.Config, bool) {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !opts.AllowAnyOrigin,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case opts.AllowAnyOrigin:
		c.AllowAllOrigins = true
	case len(opts.AllowedOrigins) > 0:
		c.AllowOrigins = opts.AllowedOrigins
	default:
		return c, false
	}
	return c, true
}
