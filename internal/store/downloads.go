package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"label-platform/internal/models"
)

const downloadColumns = `id, order_item_id, user_id, token, download_count, max_downloads,
	expires_at, last_downloaded_at, created_at`

type Downloads struct {
	db sqlx.ExtContext
}

func NewDownloads(db sqlx.ExtContext) *Downloads {
	return &Downloads{db: db}
}

func (d *Downloads) GetByOrderItem(ctx context.Context, orderItemID int64) (models.DigitalDownload, error) {
	var dl models.DigitalDownload
	err := sqlx.GetContext(ctx, d.db, &dl,
		`SELECT `+downloadColumns+` FROM digital_downloads WHERE order_item_id = $1`, orderItemID)
	return dl, translate(err)
}

func (d *Downloads) GetByToken(ctx context.Context, token string) (models.DigitalDownload, error) {
	var dl models.DigitalDownload
	err := sqlx.GetContext(ctx, d.db, &dl,
		`SELECT `+downloadColumns+` FROM digital_downloads WHERE token = $1`, token)
	return dl, translate(err)
}

// CreateDownload inserts the grant for an order item. When another request
// created it first, the existing row is returned instead.
func (d *Downloads) CreateDownload(ctx context.Context, dl models.DigitalDownload) (models.DigitalDownload, error) {
	var created models.DigitalDownload
	err := sqlx.GetContext(ctx, d.db, &created, `
		INSERT INTO digital_downloads (order_item_id, user_id, token, max_downloads, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_item_id) DO NOTHING
		RETURNING `+downloadColumns,
		dl.OrderItemID, dl.UserID, dl.Token, dl.MaxDownloads, dl.ExpiresAt)
	if err = translate(err); errors.Is(err, ErrNotFound) {
		return d.GetByOrderItem(ctx, dl.OrderItemID)
	}
	return created, err
}

// Consume counts one download. It only succeeds while the grant is unexpired
// and under its limit, otherwise ErrStaleState and the count is untouched.
func (d *Downloads) Consume(ctx context.Context, id int64, now time.Time) (models.DigitalDownload, error) {
	var dl models.DigitalDownload
	err := sqlx.GetContext(ctx, d.db, &dl, `
		UPDATE digital_downloads
		SET download_count = download_count + 1, last_downloaded_at = $2
		WHERE id = $1
		  AND (max_downloads IS NULL OR download_count < max_downloads)
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING `+downloadColumns, id, now)
	if err = translate(err); errors.Is(err, ErrNotFound) {
		return dl, ErrStaleState
	}
	return dl, err
}
