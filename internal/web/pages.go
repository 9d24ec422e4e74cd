package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

var (
	published = map[string]string{"published": "true"}
	active    = map[string]string{"active": "true"}
)

func (s *Site) Home(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		artists  []models.Artist
		posts    []models.Post
		products []models.Product
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		artists, err = s.Artists.List(ctx, store.ListQuery{Filters: map[string]string{"featured": "true"}, Limit: 6})
		return err
	})
	g.Go(func() (err error) {
		posts, err = s.Posts.List(ctx, store.ListQuery{Filters: published, Limit: 3})
		return err
	})
	g.Go(func() (err error) {
		products, err = s.Products.List(ctx, store.ListQuery{Filters: active, Limit: 8})
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(c, err)
		return
	}

	s.render(c, http.StatusOK, "home.html", gin.H{
		"Title":    s.Name,
		"Artists":  artists,
		"Posts":    posts,
		"Products": products,
	})
}

const pageSize = 24

// page reads ?page= (1-based) into a list query.
func page(c *gin.Context, filters map[string]string) (store.ListQuery, int) {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		n = 1
	}
	return store.ListQuery{Filters: filters, Search: c.Query("q"), Limit: pageSize, Offset: (n - 1) * pageSize}, n
}

func (s *Site) ArtistList(c *gin.Context) {
	q, n := page(c, map[string]string{})
	if genre := c.Query("genre"); genre != "" {
		q.Filters["genre"] = genre
	}
	artists, err := s.Artists.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "artists.html", gin.H{"Title": "Artists", "Artists": artists, "Page": n, "More": len(artists) == pageSize})
}

func (s *Site) ArtistPage(c *gin.Context) {
	ctx := c.Request.Context()
	artist, err := s.Artists.GetBy(ctx, "slug", c.Param("slug"))
	if err != nil {
		s.fail(c, err)
		return
	}

	byArtist := strconv.FormatInt(artist.ID, 10)
	var (
		products []models.Product
		videos   []models.Video
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.Products.List(gctx, store.ListQuery{Filters: map[string]string{"artist_id": byArtist, "active": "true"}})
		return err
	})
	g.Go(func() (err error) {
		videos, err = s.Videos.List(gctx, store.ListQuery{Filters: map[string]string{"artist_id": byArtist, "published": "true"}})
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(c, err)
		return
	}

	s.render(c, http.StatusOK, "artist.html", gin.H{"Title": artist.Name, "Artist": artist, "Products": products, "Videos": videos})
}

func (s *Site) NewsList(c *gin.Context) {
	q, n := page(c, published)
	posts, err := s.Posts.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "news.html", gin.H{"Title": "News", "Posts": posts, "Page": n, "More": len(posts) == pageSize})
}

// NewsPage renders one published post; drafts read as not found.
func (s *Site) NewsPage(c *gin.Context) {
	post, err := s.Posts.GetBy(c.Request.Context(), "slug", c.Param("slug"))
	if err == nil && !post.Published {
		err = store.ErrNotFound
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	body, err := s.Markdown.Render(post.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "post.html", gin.H{"Title": post.Title, "Post": post, "Body": body})
}

func (s *Site) Shop(c *gin.Context) {
	q, n := page(c, map[string]string{"active": "true"})
	for _, name := range []string{"category", "product_type"} {
		if v := c.Query(name); v != "" {
			q.Filters[name] = v
		}
	}
	products, err := s.Products.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "shop.html", gin.H{"Title": "Shop", "Products": products, "Page": n, "More": len(products) == pageSize})
}

func (s *Site) ProductPage(c *gin.Context) {
	product, err := s.Products.GetBy(c.Request.Context(), "slug", c.Param("slug"))
	if err == nil && !product.Active {
		err = store.ErrNotFound
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "product.html", gin.H{"Title": product.Name, "Product": product})
}

func (s *Site) VideoList(c *gin.Context) {
	q, n := page(c, published)
	videos, err := s.Videos.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "videos.html", gin.H{"Title": "Videos", "Videos": videos, "Page": n, "More": len(videos) == pageSize})
}

// CheckoutSuccess is where providers send the buyer back. It only shows the
// order number and payment state; the webhook is what marks the order paid.
func (s *Site) CheckoutSuccess(c *gin.Context) {
	number := strings.TrimSpace(c.Query("order"))
	if number == "" {
		s.fail(c, store.ErrNotFound)
		return
	}
	order, err := s.Orders.GetOrderByNumber(c.Request.Context(), number)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "checkout_success.html", gin.H{
		"Title":         "Thank you",
		"OrderNumber":   order.OrderNumber,
		"PaymentStatus": order.PaymentStatus,
		"Paid":          order.PaymentStatus == models.PaymentPaid,
	})
}

func (s *Site) CheckoutCancel(c *gin.Context) {
	s.render(c, http.StatusOK, "checkout_cancel.html", gin.H{"Title": "Checkout cancelled", "Order": c.Query("order")})
}
