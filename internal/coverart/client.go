package coverart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/franz/music-minder/internal/util"
)

const defaultBaseURL = "https://coverartarchive.org"

// maxCoverBytes caps a single downloaded image. The archive serves scans
// that can run to tens of megabytes at full size.
const maxCoverBytes = 20 << 20

// Client downloads artwork from the Cover Art Archive.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewClient creates an archive client.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  "music-minder/" + util.Version,
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// FetchFront downloads the front cover for a MusicBrainz release. The
// archive answers these URLs with redirects to the hosting image server,
// which the HTTP client follows.
func (c *Client) FetchFront(ctx context.Context, releaseID string, size Size) (*Cover, error) {
	url := fmt.Sprintf("%s/release/%s/front%s", c.baseURL, releaseID, size.suffix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cover art request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("no cover for release %s: %w", releaseID, util.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("cover art archive: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, fmt.Errorf("downloading cover: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return &Cover{Data: data, MIME: mime, Source: SourceRemote}, nil
}
