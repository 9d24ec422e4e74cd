package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

// memPosts keeps posts in memory and remembers the last written fields.
type memPosts struct {
	mu         sync.Mutex
	rows       map[int64]models.Post
	nextID     int64
	lastQuery  store.ListQuery
	lastFields map[string]any
	referenced map[int64]bool
}

func newMemPosts(rows ...models.Post) *memPosts {
	m := &memPosts{rows: map[int64]models.Post{}, referenced: map[int64]bool{}}
	for _, r := range rows {
		m.rows[r.ID] = r
		m.nextID = max(m.nextID, r.ID)
	}
	return m
}

func (m *memPosts) List(ctx context.Context, q store.ListQuery) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	var out []models.Post
	for _, p := range m.rows {
		if q.Filters["published"] == "true" && !p.Published {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memPosts) Get(ctx context.Context, id int64) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return p, store.ErrNotFound
	}
	return p, nil
}

func (m *memPosts) GetBy(ctx context.Context, column string, value any) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if column == "slug" && p.Slug == value {
			return p, nil
		}
	}
	return models.Post{}, store.ErrNotFound
}

func (m *memPosts) apply(p *models.Post, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "slug":
			p.Slug = v.(string)
		case "content":
			p.Content = v.(string)
		case "published":
			p.Published = v.(bool)
		case "author_id":
			id := v.(int64)
			p.AuthorID = &id
		case "published_at":
			if ts, ok := v.(time.Time); ok {
				p.PublishedAt = &ts
			} else if p.PublishedAt == nil {
				now := time.Now().UTC()
				p.PublishedAt = &now
			}
		}
	}
}

func (m *memPosts) Insert(ctx context.Context, fields map[string]any) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFields = fields
	for _, p := range m.rows {
		if p.Slug == fields["slug"] {
			return models.Post{}, store.ErrConflict
		}
	}
	m.nextID++
	p := models.Post{ID: m.nextID, CreatedAt: time.Now()}
	m.apply(&p, fields)
	m.rows[p.ID] = p
	return p, nil
}

func (m *memPosts) Update(ctx context.Context, id int64, fields map[string]any) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFields = fields
	p, ok := m.rows[id]
	if !ok {
		return p, store.ErrNotFound
	}
	m.apply(&p, fields)
	m.rows[id] = p
	return p, nil
}

func (m *memPosts) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	if m.referenced[id] {
		return store.ErrInvalidReference
	}
	delete(m.rows, id)
	return nil
}

func postRouter(repo Repository[models.Post]) *gin.Engine {
	h := NewPostHandler(repo, zap.NewNop())
	r := gin.New()
	optional := middleware.OptionalAuth(secret)
	admin := []gin.HandlerFunc{middleware.AuthMiddleware(secret), middleware.RequireAdmin()}

	r.GET("/api/posts", optional, h.List)
	r.GET("/api/posts/:id", optional, h.Get)
	r.POST("/api/posts", append(admin, h.Create)...)
	r.PUT("/api/posts/:id", append(admin, h.Update)...)
	r.DELETE("/api/posts/:id", append(admin, h.Delete)...)
	return r
}

func seededPosts() *memPosts {
	return newMemPosts(
		models.Post{ID: 1, Title: "Tour dates", Slug: "tour-dates", Published: true},
		models.Post{ID: 2, Title: "Secret album", Slug: "secret-album"},
	)
}

func TestResourceVisibility(t *testing.T) {
	repo := seededPosts()
	r := postRouter(repo)
	admin := bearer(t, 1, models.RoleAdmin)

	t.Run("anonymous list only sees published", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/posts?q=tour&limit=5", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "tour-dates")
		assert.NotContains(t, w.Body.String(), "secret-album")
		assert.Equal(t, "tour", repo.lastQuery.Search)
		assert.Equal(t, 5, repo.lastQuery.Limit)
	})

	t.Run("admin list sees drafts", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/posts", nil, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "secret-album")
		assert.NotContains(t, repo.lastQuery.Filters, "published")
	})

	t.Run("draft reads as not found for customers", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/posts/2", nil, bearer(t, 9, models.RoleCustomer))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = call(r, http.MethodGet, "/api/posts/secret-album", nil, admin)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("get by slug", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/posts/tour-dates", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Tour dates", decode(t, w)["title"])
	})

	t.Run("empty list is an array", func(t *testing.T) {
		w := call(postRouter(newMemPosts()), http.MethodGet, "/api/posts", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestResourceWrites(t *testing.T) {
	admin := bearer(t, 1, models.RoleAdmin)

	t.Run("create requires admin", func(t *testing.T) {
		r := postRouter(seededPosts())
		body := map[string]any{"title": "New", "slug": "new"}
		assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/api/posts", body, "").Code)
		assert.Equal(t, http.StatusForbidden,
			call(r, http.MethodPost, "/api/posts", body, bearer(t, 9, models.RoleCustomer)).Code)
	})

	t.Run("missing required fields are listed", func(t *testing.T) {
		r := postRouter(seededPosts())
		w := call(r, http.MethodPost, "/api/posts", map[string]any{"content": "body only"}, admin)
		require.Equal(t, http.StatusBadRequest, w.Code)
		fields := decode(t, w)["fields"].([]any)
		require.Len(t, fields, 2)
		assert.Equal(t, "title", fields[0].(map[string]any)["field"])
		assert.Equal(t, "slug", fields[1].(map[string]any)["field"])
	})

	t.Run("publishing on create stamps the author and time", func(t *testing.T) {
		repo := seededPosts()
		r := postRouter(repo)
		w := call(r, http.MethodPost, "/api/posts",
			map[string]any{"title": "Live", "slug": "live", "published": true}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		body := decode(t, w)
		assert.Equal(t, 1.0, body["author_id"])
		assert.NotNil(t, body["published_at"])
		assert.IsType(t, time.Time{}, repo.lastFields["published_at"])
	})

	t.Run("publishing on update keeps an earlier stamp", func(t *testing.T) {
		repo := seededPosts()
		r := postRouter(repo)
		w := call(r, http.MethodPut, "/api/posts/2", map[string]any{"published": true}, admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		_, isExpr := repo.lastFields["published_at"].(sq.Sqlizer)
		assert.True(t, isExpr)
		assert.NotContains(t, repo.lastFields, "author_id")
	})

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		r := postRouter(seededPosts())
		w := call(r, http.MethodPost, "/api/posts", map[string]any{"title": "Again", "slug": "tour-dates"}, admin)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("empty update returns the row", func(t *testing.T) {
		r := postRouter(seededPosts())
		w := call(r, http.MethodPut, "/api/posts/1", map[string]any{}, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tour-dates", decode(t, w)["slug"])
	})

	t.Run("malformed body", func(t *testing.T) {
		r := postRouter(seededPosts())
		w := call(r, http.MethodPut, "/api/posts/1", "{", admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		r := postRouter(seededPosts())
		assert.Equal(t, http.StatusBadRequest, call(r, http.MethodDelete, "/api/posts/abc", nil, admin).Code)
	})

	t.Run("delete", func(t *testing.T) {
		repo := seededPosts()
		repo.referenced[1] = true
		r := postRouter(repo)

		assert.Equal(t, http.StatusConflict, call(r, http.MethodDelete, "/api/posts/1", nil, admin).Code)
		assert.Equal(t, http.StatusNoContent, call(r, http.MethodDelete, "/api/posts/2", nil, admin).Code)
		assert.Equal(t, http.StatusNotFound, call(r, http.MethodDelete, "/api/posts/2", nil, admin).Code)
	})
}

func TestProductInputValidation(t *testing.T) {
	h := NewProductHandler(nil, zap.NewNop())
	r := gin.New()
	r.POST("/api/products", middleware.AuthMiddleware(secret), middleware.RequireAdmin(), h.Create)
	admin := bearer(t, 1, models.RoleAdmin)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"unknown product type", map[string]any{"name": "X", "slug": "x", "price": 10, "product_type": "service"}},
		{"negative price", map[string]any{"name": "X", "slug": "x", "price": -1, "product_type": "physical"}},
		{"negative stock", map[string]any{"name": "X", "slug": "x", "price": 1, "product_type": "physical", "inventory_count": -2}},
		{"bad image url", map[string]any{"name": "X", "slug": "x", "price": 1, "product_type": "digital", "images": []string{"not a url"}}},
		{"missing price", map[string]any{"name": "X", "slug": "x", "product_type": "digital"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, http.MethodPost, "/api/products", tc.body, admin)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestProductFieldsRoundPrice(t *testing.T) {
	price := money("12.345")
	in := ProductInput{Price: &price, Images: &[]string{"https://cdn.test/a.jpg"}}
	fields := in.Fields()
	assert.Equal(t, "12.35", fields["price"].(decimal.Decimal).String())
	assert.Len(t, fields["images"], 1)
	assert.NotContains(t, fields, "name")
}
