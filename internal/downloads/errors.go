package downloads

import "errors"

var (
	ErrNotPaid        = errors.New("order is not paid")
	ErrNotDigital     = errors.New("item has no digital download")
	ErrExpired        = errors.New("download link has expired")
	ErrLimitReached   = errors.New("download limit reached")
	ErrForbidden      = errors.New("not allowed to download this item")
	ErrStorageMissing = errors.New("file storage is not configured")
)
