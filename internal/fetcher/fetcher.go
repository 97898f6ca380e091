package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

const (
	acceptHeader  = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptCharset = "utf-8"
)

// Options configures the page fetcher.
type Options struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// PageFetcher retrieves the advisory page.
type PageFetcher struct {
	httpClient *http.Client
	url        string
	userAgent  string
}

// New creates a PageFetcher for the configured URL.
func New(opts Options) *PageFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &PageFetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		url:        opts.URL,
		userAgent:  opts.UserAgent,
	}
}

// Fetch downloads the page and returns its body as normalized UTF-8 text.
// Network failures and non-2xx responses wrap models.ErrFetch.
func (f *PageFetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", models.ErrFetch, err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Charset", acceptCharset)
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: GET %s: %v", models.ErrFetch, f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: failed to fetch data: %d %s", models.ErrFetch, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := DecodeBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", models.ErrFetch, err)
	}
	return body, nil
}

// DecodeBody reads r as UTF-8 regardless of any declared charset. Invalid
// sequences become U+FFFD, a leading byte order mark is dropped and the text
// is put into Unicode normalization form C.
func DecodeBody(r io.Reader) (string, error) {
	decoder := transform.Chain(unicode.UTF8BOM.NewDecoder(), norm.NFC)
	b, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
