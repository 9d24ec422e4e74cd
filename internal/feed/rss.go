// Package feed builds the public news feed.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"label-platform/internal/models"
)

const FeedSize = 20

type PostSource interface {
	LatestPublished(ctx context.Context, limit int) ([]models.Post, error)
}

type Builder struct {
	Posts    PostSource
	Markdown *Markdown
	Logger   *zap.Logger
	SiteURL  string
	SiteName string
}

func NewBuilder(posts PostSource, markdown *Markdown, logger *zap.Logger, siteURL, siteName string) *Builder {
	return &Builder{Posts: posts, Markdown: markdown, Logger: logger, SiteURL: siteURL, SiteName: siteName}
}

// RSS returns the latest published posts as an RSS 2.0 document.
func (b *Builder) RSS(ctx context.Context) (string, error) {
	posts, err := b.Posts.LatestPublished(ctx, FeedSize)
	if err != nil {
		return "", fmt.Errorf("load posts: %w", err)
	}

	f := &feeds.Feed{
		Title:       b.SiteName,
		Link:        &feeds.Link{Href: b.SiteURL},
		Description: "Latest news from " + b.SiteName,
	}

	for _, p := range posts {
		link := b.SiteURL + "/news/" + p.Slug
		published := p.CreatedAt
		if p.PublishedAt != nil {
			published = *p.PublishedAt
		}
		if published.After(f.Updated) {
			f.Updated = published
		}

		f.Add(&feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Id:          link,
			Description: b.describe(p),
			Created:     published,
		})
	}
	if f.Updated.IsZero() {
		f.Updated = time.Now().UTC()
	}

	return f.ToRss()
}

func (b *Builder) describe(p models.Post) string {
	if p.Excerpt != "" {
		return p.Excerpt
	}
	html, err := b.Markdown.Render(p.Content)
	if err != nil {
		b.Logger.Warn("Failed to render post for feed", zap.String("slug", p.Slug), zap.Error(err))
		return ""
	}
	return string(html)
}
