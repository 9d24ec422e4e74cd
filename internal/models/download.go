package models

import "time"

// DigitalDownload is the grant issued for a paid digital order item.
type DigitalDownload struct {
	ID               int64      `db:"id" json:"id"`
	OrderItemID      int64      `db:"order_item_id" json:"order_item_id"`
	UserID           *int64     `db:"user_id" json:"user_id"`
	Token            string     `db:"token" json:"token"`
	DownloadCount    int        `db:"download_count" json:"download_count"`
	MaxDownloads     *int       `db:"max_downloads" json:"max_downloads"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expires_at"`
	LastDownloadedAt *time.Time `db:"last_downloaded_at" json:"last_downloaded_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

func (d DigitalDownload) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && !now.Before(*d.ExpiresAt)
}

func (d DigitalDownload) Exhausted() bool {
	return d.MaxDownloads != nil && d.DownloadCount >= *d.MaxDownloads
}

// Remaining is nil when the grant has no download limit.
func (d DigitalDownload) Remaining() *int {
	if d.MaxDownloads == nil {
		return nil
	}
	left := *d.MaxDownloads - d.DownloadCount
	if left < 0 {
		left = 0
	}
	return &left
}
