// Package web renders the public site and the admin pages with
// html/template through gin.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page. Pages are addressed by file name.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"upper": strings.ToUpper,
	"prev":  func(n int) int { return n - 1 },
	"next":  func(n int) int { return n + 1 },
	"list":  func(items ...string) []string { return items },
	"deref": func(n *int) int {
		if n == nil {
			return 0
		}
		return *n
	},
	"date": func(t any) string {
		switch v := t.(type) {
		case time.Time:
			return v.Format("Jan 2, 2006")
		case *time.Time:
			if v != nil {
				return v.Format("Jan 2, 2006")
			}
		}
		return ""
	},
}

// Source is the read side of a content table.
type Source[T any] interface {
	List(ctx context.Context, q store.ListQuery) ([]T, error)
	GetBy(ctx context.Context, column string, value any) (T, error)
}

type MarkdownRenderer interface {
	Render(source string) (template.HTML, error)
}

type OrderReader interface {
	List(ctx context.Context, q store.ListQuery) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (models.Order, error)
	UpdateFulfilment(ctx context.Context, id int64, fields map[string]any) (models.Order, error)
	Stats(ctx context.Context) (models.OrderStats, error)
}

type EventPublisher interface {
	Publish(event ws.OrderEvent)
}

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (models.User, string, error)
}

// Site holds what the pages read from.
type Site struct {
	Name     string
	Artists  Source[models.Artist]
	Posts    Source[models.Post]
	Products Source[models.Product]
	Videos   Source[models.Video]
	Orders   OrderReader
	Auth     Authenticator
	Events   EventPublisher
	Markdown MarkdownRenderer
	Logger   *zap.Logger

	// SecureCookies marks the admin cookie Secure.
	SecureCookies bool
}

func (s *Site) render(c *gin.Context, code int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["SiteName"] = s.Name
	data["Path"] = c.Request.URL.Path
	c.HTML(code, page, data)
}

func (s *Site) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Title": "Not found", "Message": "That page does not exist."})
		return
	}
	s.Logger.Error("Page failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	s.render(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Error", "Message": "Something went wrong."})
}
