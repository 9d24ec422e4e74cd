package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"label-platform/internal/models"
)

var ArtistSpec = TableSpec{
	Name: "artists",
	Columns: []string{"id", "name", "slug", "bio", "genre", "image_url", "website_url",
		"spotify_url", "instagram_url", "featured", "created_at", "updated_at"},
	Writable: []string{"name", "slug", "bio", "genre", "image_url", "website_url",
		"spotify_url", "instagram_url", "featured"},
	Filters: map[string]FilterKind{"featured": FilterBool, "genre": FilterString},
	Search:  []string{"name", "bio"},
	OrderBy: "name ASC",
	Touch:   true,
}

var PostSpec = TableSpec{
	Name: "posts",
	Columns: []string{"id", "title", "slug", "excerpt", "content", "cover_image_url",
		"author_id", "artist_id", "published", "published_at", "created_at", "updated_at"},
	Writable: []string{"title", "slug", "excerpt", "content", "cover_image_url",
		"author_id", "artist_id", "published", "published_at"},
	Filters: map[string]FilterKind{"published": FilterBool, "artist_id": FilterInt, "author_id": FilterInt},
	Search:  []string{"title", "excerpt"},
	OrderBy: "published_at DESC NULLS LAST, id DESC",
	Touch:   true,
}

var VideoSpec = TableSpec{
	Name: "videos",
	Columns: []string{"id", "title", "description", "video_url", "thumbnail_url",
		"artist_id", "published", "created_at", "updated_at"},
	Writable: []string{"title", "description", "video_url", "thumbnail_url", "artist_id", "published"},
	Filters:  map[string]FilterKind{"artist_id": FilterInt, "published": FilterBool},
	Search:   []string{"title", "description"},
	Touch:    true,
}

var MediaSpec = TableSpec{
	Name:     "media",
	Columns:  []string{"id", "title", "media_type", "url", "caption", "artist_id", "created_at", "updated_at"},
	Writable: []string{"title", "media_type", "url", "caption", "artist_id"},
	Filters:  map[string]FilterKind{"artist_id": FilterInt, "media_type": FilterString},
	Search:   []string{"title", "caption"},
	Touch:    true,
}

var CommentSpec = TableSpec{
	Name:     "comments",
	Columns:  []string{"id", "user_id", "target_type", "target_id", "body", "approved", "created_at", "updated_at"},
	Writable: []string{"user_id", "target_type", "target_id", "body", "approved"},
	Filters: map[string]FilterKind{"target_type": FilterString, "target_id": FilterInt,
		"user_id": FilterInt, "approved": FilterBool},
	OrderBy: "created_at ASC",
	Touch:   true,
}

// Posts adds the feed query to the posts table.
type Posts struct {
	*Table[models.Post]
	db sqlx.ExtContext
}

func NewPosts(db sqlx.ExtContext) *Posts {
	return &Posts{Table: NewTable[models.Post](db, PostSpec), db: db}
}

// LatestPublished returns published posts, newest first.
func (p *Posts) LatestPublished(ctx context.Context, limit int) ([]models.Post, error) {
	return p.List(ctx, ListQuery{
		Filters: map[string]string{"published": "true"},
		Limit:   limit,
	})
}

var RatingSpec = TableSpec{
	Name:     "ratings",
	Columns:  []string{"id", "user_id", "target_type", "target_id", "rating", "created_at", "updated_at"},
	Writable: []string{"user_id", "target_type", "target_id", "rating"},
	Filters:  map[string]FilterKind{"target_type": FilterString, "target_id": FilterInt, "user_id": FilterInt},
	Touch:    true,
}

type Ratings struct {
	*Table[models.Rating]
	db sqlx.ExtContext
}

func NewRatings(db sqlx.ExtContext) *Ratings {
	return &Ratings{Table: NewTable[models.Rating](db, RatingSpec), db: db}
}

// Rate stores the user's rating for a target, replacing any earlier one.
func (r *Ratings) Rate(ctx context.Context, userID int64, targetType string, targetID int64, rating int) (models.Rating, error) {
	return r.Upsert(ctx, map[string]any{
		"user_id":     userID,
		"target_type": targetType,
		"target_id":   targetID,
		"rating":      rating,
	}, []string{"user_id", "target_type", "target_id"}, []string{"rating"})
}

func (r *Ratings) Summary(ctx context.Context, targetType string, targetID int64) (models.RatingSummary, error) {
	var summary models.RatingSummary
	query := `SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(*) AS count
	          FROM ratings WHERE target_type = $1 AND target_id = $2`
	if err := sqlx.GetContext(ctx, r.db, &summary, query, targetType, targetID); err != nil {
		return summary, fmt.Errorf("rating summary: %w", translate(err))
	}
	return summary, nil
}

var VoteSpec = TableSpec{
	Name:     "votes",
	Columns:  []string{"id", "user_id", "target_type", "target_id", "value", "created_at", "updated_at"},
	Writable: []string{"user_id", "target_type", "target_id", "value"},
	Filters:  map[string]FilterKind{"target_type": FilterString, "target_id": FilterInt, "user_id": FilterInt},
	Touch:    true,
}

type Votes struct {
	*Table[models.Vote]
	db sqlx.ExtContext
}

func NewVotes(db sqlx.ExtContext) *Votes {
	return &Votes{Table: NewTable[models.Vote](db, VoteSpec), db: db}
}

func (v *Votes) Cast(ctx context.Context, userID int64, targetType string, targetID int64, value int) (models.Vote, error) {
	return v.Upsert(ctx, map[string]any{
		"user_id":     userID,
		"target_type": targetType,
		"target_id":   targetID,
		"value":       value,
	}, []string{"user_id", "target_type", "target_id"}, []string{"value"})
}

func (v *Votes) Summary(ctx context.Context, targetType string, targetID int64) (models.VoteSummary, error) {
	var summary models.VoteSummary
	query := `SELECT COALESCE(SUM(value), 0) AS score,
	                 COUNT(*) FILTER (WHERE value > 0) AS up,
	                 COUNT(*) FILTER (WHERE value < 0) AS down
	          FROM votes WHERE target_type = $1 AND target_id = $2`
	if err := sqlx.GetContext(ctx, v.db, &summary, query, targetType, targetID); err != nil {
		return summary, fmt.Errorf("vote summary: %w", translate(err))
	}
	return summary, nil
}
