package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"label-platform/internal/downloads"
	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

type stubDownloads struct {
	who   downloads.Requester
	item  int64
	err   error
	grant downloads.Grant
}

func (s *stubDownloads) Download(ctx context.Context, itemID int64, who downloads.Requester) (downloads.Grant, error) {
	s.item, s.who = itemID, who
	return s.grant, s.err
}

func (s *stubDownloads) DownloadByToken(ctx context.Context, token string) (downloads.Grant, error) {
	if token != "tok_good" {
		return downloads.Grant{}, store.ErrNotFound
	}
	return s.grant, s.err
}

func downloadRouter(svc DownloadService) *gin.Engine {
	h := NewDownloadHandler(svc, zap.NewNop())
	r := gin.New()
	r.GET("/api/downloads/token/:token", h.ByToken)
	r.GET("/api/downloads/:item_id", middleware.OptionalAuth(secret), h.Download)
	return r
}

func TestDownloadHandler(t *testing.T) {
	grant := downloads.Grant{DownloadURL: "https://cdn.test/album.zip", Token: "tok_good", DownloadCount: 1}

	t.Run("guest passes order proof through", func(t *testing.T) {
		svc := &stubDownloads{grant: grant}
		w := call(downloadRouter(svc), http.MethodGet, "/api/downloads/12?order_number=ORD-1&email=a@example.com", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(12), svc.item)
		assert.Equal(t, "ORD-1", svc.who.OrderNumber)
		assert.Nil(t, svc.who.UserID)
		assert.Equal(t, "https://cdn.test/album.zip", decode(t, w)["download_url"])
	})

	t.Run("signed-in user", func(t *testing.T) {
		svc := &stubDownloads{grant: grant}
		w := call(downloadRouter(svc), http.MethodGet, "/api/downloads/12", nil, bearer(t, 3, models.RoleCustomer))
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, svc.who.UserID)
		assert.Equal(t, int64(3), *svc.who.UserID)
		assert.False(t, svc.who.Admin)
	})

	statuses := map[error]int{
		downloads.ErrLimitReached: http.StatusGone,
		downloads.ErrExpired:      http.StatusGone,
		downloads.ErrNotPaid:      http.StatusForbidden,
		downloads.ErrForbidden:    http.StatusForbidden,
		downloads.ErrNotDigital:   http.StatusBadRequest,
		store.ErrNotFound:         http.StatusNotFound,
	}
	for err, code := range statuses {
		t.Run(err.Error(), func(t *testing.T) {
			w := call(downloadRouter(&stubDownloads{err: err}), http.MethodGet, "/api/downloads/12", nil, "")
			assert.Equal(t, code, w.Code)
		})
	}

	t.Run("token redirects", func(t *testing.T) {
		r := downloadRouter(&stubDownloads{grant: grant})
		w := call(r, http.MethodGet, "/api/downloads/token/tok_good", nil, "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://cdn.test/album.zip", w.Header().Get("Location"))

		w = call(r, http.MethodGet, "/api/downloads/token/tok_bad", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("spent token is gone", func(t *testing.T) {
		r := downloadRouter(&stubDownloads{grant: grant, err: downloads.ErrLimitReached})
		assert.Equal(t, http.StatusGone, call(r, http.MethodGet, "/api/downloads/token/tok_good", nil, "").Code)
	})

	t.Run("bad item id", func(t *testing.T) {
		r := downloadRouter(&stubDownloads{})
		assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api/downloads/zero", nil, "").Code)
	})
}

type pinger struct{ err error }

func (p pinger) PingContext(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	env := map[string]bool{"DATABASE_URL": true, "JWT_SECRET": true}
	providers := map[string]bool{"stripe": true, "paypal": false, "midtrans": false}

	serve := func(h *HealthHandler) (int, map[string]any) {
		r := gin.New()
		r.GET("/api/health", h.Health)
		w := call(r, http.MethodGet, "/api/health", nil, "")
		return w.Code, decode(t, w)
	}

	code, body := serve(NewHealthHandler(pinger{}, env, nil, providers, zap.NewNop()))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, true, body["payments"].(map[string]any)["stripe"])
	assert.NotEmpty(t, body["time"])

	code, body = serve(NewHealthHandler(pinger{err: errors.New("connection refused")}, env, nil, providers, zap.NewNop()))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unreachable", body["database"])

	code, body = serve(NewHealthHandler(pinger{}, map[string]bool{"JWT_SECRET": false}, []string{"JWT_SECRET"}, providers, zap.NewNop()))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, body["env"].(map[string]any)["JWT_SECRET"])
}

type memEngagement struct {
	ratings map[string]models.Rating
	votes   map[string]models.Vote
}

func newMemEngagement() *memEngagement {
	return &memEngagement{ratings: map[string]models.Rating{}, votes: map[string]models.Vote{}}
}

func engagementKey(userID int64, targetType string, targetID int64) string {
	return fmt.Sprintf("%d/%s/%d", userID, targetType, targetID)
}

type memRatings struct{ *memEngagement }

func (m memRatings) List(ctx context.Context, q store.ListQuery) ([]models.Rating, error) {
	var out []models.Rating
	for _, r := range m.ratings {
		out = append(out, r)
	}
	return out, nil
}

func (m memRatings) Rate(ctx context.Context, userID int64, targetType string, targetID int64, rating int) (models.Rating, error) {
	r := models.Rating{UserID: userID, TargetType: targetType, TargetID: targetID, Rating: rating}
	m.ratings[engagementKey(userID, targetType, targetID)] = r
	return r, nil
}

func (m memRatings) Summary(ctx context.Context, targetType string, targetID int64) (models.RatingSummary, error) {
	var s models.RatingSummary
	var sum int
	for _, r := range m.ratings {
		if r.TargetType == targetType && r.TargetID == targetID {
			s.Count++
			sum += r.Rating
		}
	}
	if s.Count > 0 {
		s.Average = float64(sum) / float64(s.Count)
	}
	return s, nil
}

type memVotes struct{ *memEngagement }

func (m memVotes) List(ctx context.Context, q store.ListQuery) ([]models.Vote, error) {
	return nil, nil
}

func (m memVotes) Cast(ctx context.Context, userID int64, targetType string, targetID int64, value int) (models.Vote, error) {
	v := models.Vote{UserID: userID, TargetType: targetType, TargetID: targetID, Value: value}
	m.votes[engagementKey(userID, targetType, targetID)] = v
	return v, nil
}

func (m memVotes) Summary(ctx context.Context, targetType string, targetID int64) (models.VoteSummary, error) {
	var s models.VoteSummary
	for _, v := range m.votes {
		if v.TargetType != targetType || v.TargetID != targetID {
			continue
		}
		s.Score += int64(v.Value)
		if v.Value > 0 {
			s.Up++
		} else {
			s.Down++
		}
	}
	return s, nil
}

func TestEngagement(t *testing.T) {
	mem := newMemEngagement()
	h := NewEngagementHandler(memRatings{mem}, memVotes{mem}, zap.NewNop())
	r := gin.New()
	auth := middleware.AuthMiddleware(secret)
	r.GET("/api/ratings", h.ListRatings)
	r.POST("/api/ratings", auth, h.Rate)
	r.GET("/api/ratings/summary", h.RatingSummary)
	r.GET("/api/votes", h.ListVotes)
	r.POST("/api/votes", auth, h.Vote)
	r.GET("/api/votes/summary", h.VoteSummary)

	alice, bob := bearer(t, 1, models.RoleCustomer), bearer(t, 2, models.RoleCustomer)

	t.Run("rating replaces the earlier one", func(t *testing.T) {
		rate := func(auth string, n int) int {
			return call(r, http.MethodPost, "/api/ratings",
				map[string]any{"target_type": "product", "target_id": 1, "rating": n}, auth).Code
		}
		require.Equal(t, http.StatusOK, rate(alice, 2))
		require.Equal(t, http.StatusOK, rate(alice, 4))
		require.Equal(t, http.StatusOK, rate(bob, 5))

		w := call(r, http.MethodGet, "/api/ratings/summary?target_type=product&target_id=1", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, 2.0, body["count"])
		assert.Equal(t, 4.5, body["average"])

		w = call(r, http.MethodGet, "/api/ratings", nil, "")
		assert.Len(t, decodeList(t, w.Body.Bytes()), 2)
	})

	t.Run("votes", func(t *testing.T) {
		vote := func(auth string, v int) int {
			return call(r, http.MethodPost, "/api/votes",
				map[string]any{"target_type": "post", "target_id": 3, "value": v}, auth).Code
		}
		require.Equal(t, http.StatusOK, vote(alice, 1))
		require.Equal(t, http.StatusOK, vote(bob, -1))
		require.Equal(t, http.StatusOK, vote(bob, 1))

		w := call(r, http.MethodGet, "/api/votes/summary?target_type=post&target_id=3", nil, "")
		assert.JSONEq(t, `{"score":2,"up":2,"down":0}`, w.Body.String())

		w = call(r, http.MethodGet, "/api/votes", nil, "")
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	invalid := []struct {
		path string
		body map[string]any
	}{
		{"/api/ratings", map[string]any{"target_type": "product", "target_id": 1, "rating": 6}},
		{"/api/ratings", map[string]any{"target_type": "product", "target_id": 1, "rating": 0}},
		{"/api/ratings", map[string]any{"target_type": "order", "target_id": 1, "rating": 3}},
		{"/api/votes", map[string]any{"target_type": "post", "target_id": 3, "value": 2}},
		{"/api/votes", map[string]any{"target_type": "post", "target_id": 0, "value": 1}},
	}
	for _, tc := range invalid {
		w := call(r, http.MethodPost, tc.path, tc.body, alice)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s %v", tc.path, tc.body)
	}

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/api/votes",
		map[string]any{"target_type": "post", "target_id": 3, "value": 1}, "").Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api/votes/summary?target_type=post", nil, "").Code)
}

type stubFeed struct {
	xml string
	err error
}

func (s stubFeed) RSS(ctx context.Context) (string, error) { return s.xml, s.err }

func TestFeedHandler(t *testing.T) {
	serve := func(f FeedBuilder) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/rss.xml", NewFeedHandler(f, zap.NewNop()).RSS)
		return call(r, http.MethodGet, "/rss.xml", nil, "")
	}

	w := serve(stubFeed{xml: `<rss version="2.0"></rss>`})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
	assert.Equal(t, `<rss version="2.0"></rss>`, w.Body.String())

	w = serve(stubFeed{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
