// Package downloads issues and enforces download grants for paid digital
// order items.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	GetOrderItem(ctx context.Context, itemID int64) (models.OrderItem, error)
}

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (models.Product, error)
}

type GrantStore interface {
	GetByOrderItem(ctx context.Context, orderItemID int64) (models.DigitalDownload, error)
	GetByToken(ctx context.Context, token string) (models.DigitalDownload, error)
	CreateDownload(ctx context.Context, dl models.DigitalDownload) (models.DigitalDownload, error)
	Consume(ctx context.Context, id int64, now time.Time) (models.DigitalDownload, error)
}

// Requester identifies who asks for a download: a signed-in user, or a guest
// quoting the order number and email.
type Requester struct {
	UserID      *int64
	Admin       bool
	OrderNumber string
	Email       string
}

// Grant is one counted download.
type Grant struct {
	DownloadURL        string     `json:"download_url"`
	Token              string     `json:"token"`
	DownloadCount      int        `json:"download_count"`
	DownloadsRemaining *int       `json:"downloads_remaining"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

type Service struct {
	Orders   OrderReader
	Products ProductReader
	Grants   GrantStore
	Locator  *Locator
	Logger   *zap.Logger

	now func() time.Time
}

func NewService(orders OrderReader, products ProductReader, grants GrantStore, locator *Locator, logger *zap.Logger) *Service {
	return &Service{
		Orders:   orders,
		Products: products,
		Grants:   grants,
		Locator:  locator,
		Logger:   logger,
		now:      time.Now,
	}
}

// Download counts one download of an order item for an authorized
// requester, creating the grant on first use.
func (s *Service) Download(ctx context.Context, itemID int64, who Requester) (Grant, error) {
	item, order, err := s.loadItem(ctx, itemID)
	if err != nil {
		return Grant{}, err
	}
	// Strangers learn nothing about the order, not even whether it is paid.
	if !authorized(order, who) {
		return Grant{}, ErrForbidden
	}
	product, err := s.downloadable(ctx, item, order)
	if err != nil {
		return Grant{}, err
	}

	dl, err := s.Grants.GetByOrderItem(ctx, item.ID)
	if errors.Is(err, store.ErrNotFound) {
		dl, err = s.Grants.CreateDownload(ctx, s.newGrant(item, order, product))
	}
	if err != nil {
		return Grant{}, fmt.Errorf("download grant for item %d: %w", item.ID, err)
	}

	return s.consume(ctx, dl, product)
}

// DownloadByToken is Download for a holder of the grant token.
func (s *Service) DownloadByToken(ctx context.Context, token string) (Grant, error) {
	if _, err := uuid.Parse(token); err != nil {
		return Grant{}, store.ErrNotFound
	}
	dl, err := s.Grants.GetByToken(ctx, token)
	if err != nil {
		return Grant{}, err
	}

	item, order, err := s.loadItem(ctx, dl.OrderItemID)
	if err != nil {
		return Grant{}, err
	}
	product, err := s.downloadable(ctx, item, order)
	if err != nil {
		return Grant{}, err
	}
	return s.consume(ctx, dl, product)
}

func (s *Service) loadItem(ctx context.Context, itemID int64) (models.OrderItem, models.Order, error) {
	item, err := s.Orders.GetOrderItem(ctx, itemID)
	if err != nil {
		return item, models.Order{}, err
	}
	order, err := s.Orders.GetOrder(ctx, item.OrderID)
	return item, order, err
}

// downloadable returns the product behind a paid digital order item.
func (s *Service) downloadable(ctx context.Context, item models.OrderItem, order models.Order) (models.Product, error) {
	if order.PaymentStatus != models.PaymentPaid {
		return models.Product{}, ErrNotPaid
	}
	if item.ProductID == nil {
		return models.Product{}, ErrNotDigital
	}

	product, err := s.Products.GetProduct(ctx, *item.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return product, ErrNotDigital
	}
	if err != nil {
		return product, err
	}
	if product.DownloadURL == "" {
		return product, ErrNotDigital
	}
	return product, nil
}

func authorized(order models.Order, who Requester) bool {
	if who.Admin {
		return true
	}
	if who.UserID != nil && order.UserID != nil && *who.UserID == *order.UserID {
		return true
	}
	return who.OrderNumber != "" &&
		who.OrderNumber == order.OrderNumber &&
		strings.EqualFold(strings.TrimSpace(who.Email), order.Email)
}

func (s *Service) newGrant(item models.OrderItem, order models.Order, product models.Product) models.DigitalDownload {
	dl := models.DigitalDownload{
		OrderItemID:  item.ID,
		UserID:       order.UserID,
		Token:        uuid.NewString(),
		MaxDownloads: product.DownloadLimit,
	}
	if product.ExpiryDays != nil && *product.ExpiryDays > 0 {
		expires := s.now().UTC().AddDate(0, 0, *product.ExpiryDays)
		dl.ExpiresAt = &expires
	}
	return dl
}

func (s *Service) consume(ctx context.Context, dl models.DigitalDownload, product models.Product) (Grant, error) {
	now := s.now().UTC()
	if dl.Expired(now) {
		return Grant{}, ErrExpired
	}
	if dl.Exhausted() {
		return Grant{}, ErrLimitReached
	}

	// Resolve the URL first so a storage failure does not use up a download.
	url, err := s.Locator.URL(product.DownloadURL)
	if err != nil {
		return Grant{}, err
	}

	consumed, err := s.Grants.Consume(ctx, dl.ID, now)
	if errors.Is(err, store.ErrStaleState) {
		// Another request took the last download or the grant expired
		// between the read and the update.
		if dl.Expired(s.now().UTC()) {
			return Grant{}, ErrExpired
		}
		return Grant{}, ErrLimitReached
	}
	if err != nil {
		return Grant{}, fmt.Errorf("count download %d: %w", dl.ID, err)
	}

	s.Logger.Info("Download granted",
		zap.Int64("order_item_id", consumed.OrderItemID),
		zap.Int("download_count", consumed.DownloadCount))

	return Grant{
		DownloadURL:        url,
		Token:              consumed.Token,
		DownloadCount:      consumed.DownloadCount,
		DownloadsRemaining: consumed.Remaining(),
		ExpiresAt:          consumed.ExpiresAt,
	}, nil
}
