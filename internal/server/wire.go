package server

import (
	"fmt"

	"go.uber.org/zap"

	"label-platform/internal/checkout"
	"label-platform/internal/config"
	"label-platform/internal/database"
	"label-platform/internal/downloads"
	"label-platform/internal/feed"
	"label-platform/internal/handlers"
	"label-platform/internal/payments"
	"label-platform/internal/store"
	"label-platform/internal/web"
	ws "label-platform/internal/websocket"
)

// Wire builds every service and handler over one pool and one hub.
func Wire(cfg config.Config, db *database.DB, hub *ws.Hub, logger *zap.Logger) (Handlers, error) {
	s := store.New(db)

	providers, err := payments.NewProviders(cfg)
	if err != nil {
		return Handlers{}, fmt.Errorf("payment providers: %w", err)
	}
	for name, enabled := range providers.Enabled() {
		if !enabled {
			logger.Warn("Payment provider disabled, credentials missing", zap.String("provider", name))
		}
	}

	locator := downloads.NewLocator(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.DownloadsBucket)
	if cfg.SupabaseURL == "" {
		logger.Info("Supabase storage not configured, storage:// downloads will fail")
	}

	markdown := feed.NewMarkdown()

	checkoutSvc := checkout.NewService(s.Products, s.Carts, s.Orders, logger.Named("checkout"), checkout.Options{
		Currency:             cfg.Currency,
		TrustClientSnapshots: cfg.TrustClientSnapshots,
	})
	paymentSvc := payments.NewService(s.Orders, providers, hub, logger.Named("payments"), payments.Settings{
		SiteURL:             cfg.SiteURL,
		SiteName:            cfg.SiteName,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
	})
	downloadSvc := downloads.NewService(s.Orders, s.Products, s.Downloads, locator, logger.Named("downloads"))
	feedBuilder := feed.NewBuilder(s.Posts, markdown, logger.Named("feed"), cfg.SiteURL, cfg.SiteName)

	auth := handlers.NewAuthHandler(s.Users, cfg.JWTSecret, logger)

	return Handlers{
		Auth:       auth,
		Artists:    handlers.NewArtistHandler(s.Artists, logger),
		Products:   handlers.NewProductHandler(s.Products, logger),
		Posts:      handlers.NewPostHandler(s.Posts, logger),
		Videos:     handlers.NewVideoHandler(s.Videos, logger),
		Media:      handlers.NewMediaHandler(s.Media, logger),
		Comments:   handlers.NewCommentHandler(s.Comments, logger),
		Engagement: handlers.NewEngagementHandler(s.Ratings, s.Votes, logger),
		Cart:       handlers.NewCartHandler(s.Carts, logger),
		Checkout:   handlers.NewCheckoutHandler(checkoutSvc, hub, logger),
		Payments:   handlers.NewPaymentHandler(paymentSvc, s.Orders, logger),
		Orders:     handlers.NewOrderHandler(s.Orders, hub, logger),
		Downloads:  handlers.NewDownloadHandler(downloadSvc, logger),
		Health:     handlers.NewHealthHandler(db, cfg.Present(), cfg.MissingRequired(), providers.Enabled(), logger),
		Feed:       handlers.NewFeedHandler(feedBuilder, logger),
		WebSocket:  handlers.NewWebSocketHandler(hub, cfg.JWTSecret, logger),
		Site: &web.Site{
			Name:          cfg.SiteName,
			Artists:       s.Artists,
			Posts:         s.Posts,
			Products:      s.Products,
			Videos:        s.Videos,
			Orders:        s.Orders,
			Auth:          auth,
			Events:        hub,
			Markdown:      markdown,
			Logger:        logger.Named("web"),
			SecureCookies: !cfg.IsDev(),
		},
	}, nil
}
