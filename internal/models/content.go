package models

import "time"

// Artist is a label roster entry.
type Artist struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Slug         string    `db:"slug" json:"slug"`
	Bio          string    `db:"bio" json:"bio"`
	Genre        string    `db:"genre" json:"genre"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	WebsiteURL   string    `db:"website_url" json:"website_url"`
	SpotifyURL   string    `db:"spotify_url" json:"spotify_url"`
	InstagramURL string    `db:"instagram_url" json:"instagram_url"`
	Featured     bool      `db:"featured" json:"featured"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Post is a news entry. Content is markdown.
type Post struct {
	ID            int64      `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Slug          string     `db:"slug" json:"slug"`
	Excerpt       string     `db:"excerpt" json:"excerpt"`
	Content       string     `db:"content" json:"content"`
	CoverImageURL string     `db:"cover_image_url" json:"cover_image_url"`
	AuthorID      *int64     `db:"author_id" json:"author_id"`
	ArtistID      *int64     `db:"artist_id" json:"artist_id"`
	Published     bool       `db:"published" json:"published"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type Video struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	VideoURL     string    `db:"video_url" json:"video_url"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	ArtistID     *int64    `db:"artist_id" json:"artist_id"`
	Published    bool      `db:"published" json:"published"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Media is a gallery asset: image, audio or video file.
type Media struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	MediaType string    `db:"media_type" json:"media_type"`
	URL       string    `db:"url" json:"url"`
	Caption   string    `db:"caption" json:"caption"`
	ArtistID  *int64    `db:"artist_id" json:"artist_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Comment, Rating and Vote point at any content row through
// (target_type, target_id).
type Comment struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   int64     `db:"target_id" json:"target_id"`
	Body       string    `db:"body" json:"body"`
	Approved   bool      `db:"approved" json:"approved"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type Rating struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   int64     `db:"target_id" json:"target_id"`
	Rating     int       `db:"rating" json:"rating"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type RatingSummary struct {
	Average float64 `db:"average" json:"average"`
	Count   int64   `db:"count" json:"count"`
}

type Vote struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   int64     `db:"target_id" json:"target_id"`
	Value      int       `db:"value" json:"value"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type VoteSummary struct {
	Score int64 `db:"score" json:"score"`
	Up    int64 `db:"up" json:"up"`
	Down  int64 `db:"down" json:"down"`
}
