package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

const (
	LoginPath = "/admin/login"
	adminHome = "/admin"
)

var orderStatuses = []models.OrderStatus{
	models.OrderPending, models.OrderProcessing, models.OrderShipped,
	models.OrderDelivered, models.OrderCancelled,
}

func (s *Site) LoginForm(c *gin.Context) {
	s.render(c, http.StatusOK, "admin_login.html", gin.H{"Title": "Admin login"})
}

// Login checks the form credentials and stores an admin's token in the
// admin cookie. Customers are refused like a wrong password.
func (s *Site) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	user, token, err := s.Auth.Authenticate(c.Request.Context(), email, password)
	if err == nil && !user.IsAdmin() {
		err = store.ErrNotFound
	}
	if errors.Is(err, store.ErrNotFound) {
		s.Logger.Warn("Admin login refused", zap.String("email", email))
		s.render(c, http.StatusUnauthorized, "admin_login.html", gin.H{
			"Title": "Admin login",
			"Error": "Invalid email or password.",
			"Email": email,
		})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AdminCookie, token, int(middleware.TokenTTL.Seconds()), "/", "", s.SecureCookies, true)
	c.Redirect(http.StatusSeeOther, adminHome)
}

func (s *Site) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AdminCookie, "", -1, "/", "", s.SecureCookies, true)
	c.Redirect(http.StatusSeeOther, LoginPath)
}

func (s *Site) Dashboard(c *gin.Context) {
	var (
		stats  models.OrderStats
		recent []models.Order
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		stats, err = s.Orders.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.Orders.List(ctx, store.ListQuery{Limit: 10})
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(c, err)
		return
	}

	s.render(c, http.StatusOK, "admin_dashboard.html", gin.H{"Title": "Dashboard", "Stats": stats, "Orders": recent})
}

func (s *Site) OrderList(c *gin.Context) {
	q, n := page(c, map[string]string{})
	for _, name := range []string{"payment_status", "order_status", "email"} {
		if v := c.Query(name); v != "" {
			q.Filters[name] = v
		}
	}
	orders, err := s.Orders.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "admin_orders.html", gin.H{
		"Title":   "Orders",
		"Orders":  orders,
		"Filters": q.Filters,
		"Page":    n,
		"More":    len(orders) == pageSize,
	})
}

func (s *Site) OrderPage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, store.ErrNotFound)
		return
	}
	order, err := s.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "admin_order.html", gin.H{
		"Title":    order.OrderNumber,
		"Order":    order,
		"Statuses": orderStatuses,
		"Saved":    c.Query("saved") != "",
	})
}

// UpdateOrder saves the fulfilment form and redirects back to the order.
func (s *Site) UpdateOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, store.ErrNotFound)
		return
	}

	status := models.OrderStatus(c.PostForm("order_status"))
	if !models.ValidOrderStatus(status) {
		c.String(http.StatusBadRequest, "invalid order status")
		return
	}
	fields := map[string]any{
		"order_status":    status,
		"tracking_number": strings.TrimSpace(c.PostForm("tracking_number")),
		"notes":           c.PostForm("notes"),
	}

	order, err := s.Orders.UpdateFulfilment(c.Request.Context(), id, fields)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.Events != nil {
		s.Events.Publish(ws.NewOrderEvent(ws.EventOrderUpdated, order))
	}
	s.Logger.Info("Order updated from admin", zap.Int64("order_id", id), zap.String("order_status", string(status)))
	c.Redirect(http.StatusSeeOther, "/admin/orders/"+strconv.FormatInt(id, 10)+"?saved=1")
}

// ProductList shows every product, inactive ones included.
func (s *Site) ProductList(c *gin.Context) {
	q, n := page(c, map[string]string{})
	products, err := s.Products.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "admin_products.html", gin.H{
		"Title":    "Products",
		"Products": products,
		"Page":     n,
		"More":     len(products) == pageSize,
	})
}
