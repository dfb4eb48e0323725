package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// ErrImageTooLarge is returned when an image exceeds the fetcher's size ceiling.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// Default fetch limits.
const (
	DefaultMaxImageBytes = 20 << 20
	DefaultFetchTimeout  = 15 * time.Second
	DefaultUserAgent     = "Mozilla/5.0 (compatible; followwatch/1.0)"
	fallbackContentType  = "image/jpeg"
)

// Image is a downloaded image payload.
type Image struct {
	Data        []byte
	ContentType string
}

// DataURL renders the image as a base64 data URL.
func (img Image) DataURL() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ImageFetcher downloads images with a timeout and a size ceiling.
type ImageFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	referer   string
}

// FetcherOption customizes an ImageFetcher.
type FetcherOption func(*ImageFetcher)

// WithFetchClient overrides the HTTP client.
func WithFetchClient(c *http.Client) FetcherOption {
	return func(f *ImageFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithReferer sets the Referer header sent with every fetch.
func WithReferer(referer string) FetcherOption {
	return func(f *ImageFetcher) {
		f.referer = referer
	}
}

// NewImageFetcher builds an ImageFetcher. Zero values select the defaults.
func NewImageFetcher(timeout time.Duration, maxBytes int64, opts ...FetcherOption) *ImageFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	f := &ImageFetcher{
		client:    &http.Client{Timeout: timeout},
		maxBytes:  maxBytes,
		userAgent: DefaultUserAgent,
		referer:   "https://www.instagram.com/",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the image at rawURL.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return Image{}, ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Image{}, ErrImageTooLarge
	}
	return Image{Data: data, ContentType: contentType(resp.Header.Get("Content-Type"), data)}, nil
}

func contentType(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return fallbackContentType
}
