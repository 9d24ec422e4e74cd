package downloads

import (
	"fmt"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

const storageScheme = "storage://"

// URLSigner is satisfied by *storage_go.Client.
type URLSigner interface {
	CreateSignedUrl(bucketID string, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error)
}

// Locator turns a product download reference into a URL a browser can
// fetch. References of the form storage://bucket/path are signed against
// Supabase Storage; anything else is returned as is.
type Locator struct {
	signer        URLSigner
	defaultBucket string
	ttl           time.Duration
}

// NewLocator returns a Locator without storage when url or key is empty.
func NewLocator(url, serviceKey, defaultBucket string) *Locator {
	l := &Locator{defaultBucket: defaultBucket, ttl: time.Hour}
	if url != "" && serviceKey != "" {
		l.signer = storage_go.NewClient(strings.TrimRight(url, "/")+"/storage/v1", serviceKey, nil)
	}
	return l
}

func NewLocatorWith(signer URLSigner, defaultBucket string, ttl time.Duration) *Locator {
	return &Locator{signer: signer, defaultBucket: defaultBucket, ttl: ttl}
}

func (l *Locator) URL(ref string) (string, error) {
	if !strings.HasPrefix(ref, storageScheme) {
		return ref, nil
	}
	if l.signer == nil {
		return "", ErrStorageMissing
	}

	bucket, path := l.split(strings.TrimPrefix(ref, storageScheme))
	if bucket == "" || path == "" {
		return "", fmt.Errorf("invalid storage reference %q", ref)
	}

	resp, err := l.signer.CreateSignedUrl(bucket, path, int(l.ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, path, err)
	}
	return resp.SignedURL, nil
}

// split accepts bucket/path, or a bare path in the default bucket when the
// reference has no slash.
func (l *Locator) split(rest string) (string, string) {
	bucket, path, ok := strings.Cut(rest, "/")
	if !ok {
		return l.defaultBucket, bucket
	}
	return bucket, path
}
