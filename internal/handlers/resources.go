package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

func set[V any](fields map[string]any, column string, v *V) {
	if v != nil {
		fields[column] = *v
	}
}

type ArtistInput struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=200"`
	Slug         *string `json:"slug" binding:"omitempty,min=1,max=200"`
	Bio          *string `json:"bio"`
	Genre        *string `json:"genre" binding:"omitempty,max=100"`
	ImageURL     *string `json:"image_url" binding:"omitempty,url"`
	WebsiteURL   *string `json:"website_url" binding:"omitempty,url"`
	SpotifyURL   *string `json:"spotify_url" binding:"omitempty,url"`
	InstagramURL *string `json:"instagram_url" binding:"omitempty,url"`
	Featured     *bool   `json:"featured"`
}

func (in *ArtistInput) Fields() map[string]any {
	f := map[string]any{}
	set(f, "name", in.Name)
	set(f, "slug", in.Slug)
	set(f, "bio", in.Bio)
	set(f, "genre", in.Genre)
	set(f, "image_url", in.ImageURL)
	set(f, "website_url", in.WebsiteURL)
	set(f, "spotify_url", in.SpotifyURL)
	set(f, "instagram_url", in.InstagramURL)
	set(f, "featured", in.Featured)
	return f
}

type ProductInput struct {
	Name           *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Slug           *string          `json:"slug" binding:"omitempty,min=1,max=200"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	Category       *string          `json:"category" binding:"omitempty,max=100"`
	ProductType    *string          `json:"product_type" binding:"omitempty,oneof=physical digital bundle"`
	ImageURL       *string          `json:"image_url" binding:"omitempty,url"`
	Images         *[]string        `json:"images" binding:"omitempty,dive,url"`
	ArtistID       *int64           `json:"artist_id" binding:"omitempty,gt=0"`
	InventoryCount *int             `json:"inventory_count" binding:"omitempty,gte=0"`
	Active         *bool            `json:"active"`
	DownloadURL    *string          `json:"download_url" binding:"omitempty,max=1000"`
	DownloadLimit  *int             `json:"download_limit" binding:"omitempty,gt=0"`
	ExpiryDays     *int             `json:"expiry_days" binding:"omitempty,gt=0"`
}

func (in *ProductInput) Fields() map[string]any {
	f := map[string]any{}
	set(f, "name", in.Name)
	set(f, "slug", in.Slug)
	set(f, "description", in.Description)
	if in.Price != nil {
		f["price"] = in.Price.Round(2)
	}
	set(f, "category", in.Category)
	set(f, "product_type", in.ProductType)
	set(f, "image_url", in.ImageURL)
	if in.Images != nil {
		f["images"] = pq.StringArray(*in.Images)
	}
	set(f, "artist_id", in.ArtistID)
	set(f, "inventory_count", in.InventoryCount)
	set(f, "active", in.Active)
	set(f, "download_url", in.DownloadURL)
	set(f, "download_limit", in.DownloadLimit)
	set(f, "expiry_days", in.ExpiryDays)
	return f
}

type PostInput struct {
	Title         *string    `json:"title" binding:"omitempty,min=1,max=300"`
	Slug          *string    `json:"slug" binding:"omitempty,min=1,max=300"`
	Excerpt       *string    `json:"excerpt" binding:"omitempty,max=1000"`
	Content       *string    `json:"content"`
	CoverImageURL *string    `json:"cover_image_url" binding:"omitempty,url"`
	ArtistID      *int64     `json:"artist_id" binding:"omitempty,gt=0"`
	Published     *bool      `json:"published"`
	PublishedAt   *time.Time `json:"published_at"`
}

func (in *PostInput) Fields() map[string]any {
	f := map[string]any{}
	set(f, "title", in.Title)
	set(f, "slug", in.Slug)
	set(f, "excerpt", in.Excerpt)
	set(f, "content", in.Content)
	set(f, "cover_image_url", in.CoverImageURL)
	set(f, "artist_id", in.ArtistID)
	set(f, "published", in.Published)
	set(f, "published_at", in.PublishedAt)
	return f
}

type VideoInput struct {
	Title        *string `json:"title" binding:"omitempty,min=1,max=300"`
	Description  *string `json:"description"`
	VideoURL     *string `json:"video_url" binding:"omitempty,url"`
	ThumbnailURL *string `json:"thumbnail_url" binding:"omitempty,url"`
	ArtistID     *int64  `json:"artist_id" binding:"omitempty,gt=0"`
	Published    *bool   `json:"published"`
}

func (in *VideoInput) Fields() map[string]any {
	f := map[string]any{}
	set(f, "title", in.Title)
	set(f, "description", in.Description)
	set(f, "video_url", in.VideoURL)
	set(f, "thumbnail_url", in.ThumbnailURL)
	set(f, "artist_id", in.ArtistID)
	set(f, "published", in.Published)
	return f
}

type MediaInput struct {
	Title     *string `json:"title" binding:"omitempty,min=1,max=300"`
	MediaType *string `json:"media_type" binding:"omitempty,oneof=image audio video"`
	URL       *string `json:"url" binding:"omitempty,url"`
	Caption   *string `json:"caption"`
	ArtistID  *int64  `json:"artist_id" binding:"omitempty,gt=0"`
}

func (in *MediaInput) Fields() map[string]any {
	f := map[string]any{}
	set(f, "title", in.Title)
	set(f, "media_type", in.MediaType)
	set(f, "url", in.URL)
	set(f, "caption", in.Caption)
	set(f, "artist_id", in.ArtistID)
	return f
}

// CommentInput never carries user_id; it comes from the token.
type CommentInput struct {
	TargetType *string `json:"target_type" binding:"omitempty,oneof=artist post product video media"`
	TargetID   *int64  `json:"target_id" binding:"omitempty,gt=0"`
	Body       *string `json:"body" binding:"omitempty,min=1,max=2000"`
	Approved   *bool   `json:"approved"`
}

func (in *CommentInput) Fields() map[string]any {
	f := map[string]any{}
	set(f, "target_type", in.TargetType)
	set(f, "target_id", in.TargetID)
	set(f, "body", in.Body)
	set(f, "approved", in.Approved)
	return f
}

func NewArtistHandler(repo Repository[models.Artist], logger *zap.Logger) *ResourceHandler[models.Artist] {
	return &ResourceHandler[models.Artist]{
		Repo:     repo,
		Logger:   logger,
		NewInput: func() Input { return &ArtistInput{} },
		Required: []string{"name", "slug"},
		BySlug:   true,
	}
}

func NewProductHandler(repo Repository[models.Product], logger *zap.Logger) *ResourceHandler[models.Product] {
	return &ResourceHandler[models.Product]{
		Repo:     repo,
		Logger:   logger,
		NewInput: func() Input { return &ProductInput{} },
		Required: []string{"name", "slug", "price", "product_type"},
		BySlug:   true,
		Scope:    func(q *store.ListQuery) { q.Filters["active"] = "true" },
		Visible:  func(p models.Product) bool { return p.Active },
		Prepare: func(c *gin.Context, fields map[string]any, creating bool) error {
			if price, ok := fields["price"].(decimal.Decimal); ok && price.IsNegative() {
				return invalidField("price", "gte", "must be at least 0")
			}
			return nil
		},
	}
}

func NewPostHandler(repo Repository[models.Post], logger *zap.Logger) *ResourceHandler[models.Post] {
	return &ResourceHandler[models.Post]{
		Repo:     repo,
		Logger:   logger,
		NewInput: func() Input { return &PostInput{} },
		Required: []string{"title", "slug"},
		BySlug:   true,
		Scope:    func(q *store.ListQuery) { q.Filters["published"] = "true" },
		Visible:  func(p models.Post) bool { return p.Published },
		Prepare: func(c *gin.Context, fields map[string]any, creating bool) error {
			if creating {
				fields["author_id"] = *middleware.UserID(c)
			}
			published, _ := fields["published"].(bool)
			if _, given := fields["published_at"]; published && !given {
				if creating {
					fields["published_at"] = time.Now().UTC()
				} else {
					fields["published_at"] = store.StampOnce("published_at")
				}
			}
			return nil
		},
	}
}

func NewVideoHandler(repo Repository[models.Video], logger *zap.Logger) *ResourceHandler[models.Video] {
	return &ResourceHandler[models.Video]{
		Repo:     repo,
		Logger:   logger,
		NewInput: func() Input { return &VideoInput{} },
		Required: []string{"title", "video_url"},
		Scope:    func(q *store.ListQuery) { q.Filters["published"] = "true" },
		Visible:  func(v models.Video) bool { return v.Published },
	}
}

func NewMediaHandler(repo Repository[models.Media], logger *zap.Logger) *ResourceHandler[models.Media] {
	return &ResourceHandler[models.Media]{
		Repo:     repo,
		Logger:   logger,
		NewInput: func() Input { return &MediaInput{} },
		Required: []string{"title", "media_type", "url"},
	}
}

// NewCommentHandler expects create behind AuthMiddleware and update/delete
// behind RequireAdmin.
func NewCommentHandler(repo Repository[models.Comment], logger *zap.Logger) *ResourceHandler[models.Comment] {
	return &ResourceHandler[models.Comment]{
		Repo:     repo,
		Logger:   logger,
		NewInput: func() Input { return &CommentInput{} },
		Required: []string{"target_type", "target_id", "body"},
		Scope:    func(q *store.ListQuery) { q.Filters["approved"] = "true" },
		Visible:  func(cm models.Comment) bool { return cm.Approved },
		Prepare: func(c *gin.Context, fields map[string]any, creating bool) error {
			if !creating {
				return nil
			}
			fields["user_id"] = *middleware.UserID(c)
			if !middleware.IsAdmin(c) {
				fields["approved"] = false
			}
			return nil
		},
	}
}
