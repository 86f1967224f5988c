// Package acoustid looks up Chromaprint fingerprints against the AcoustID
// web service and returns ranked MusicBrainz matches.
package acoustid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/util"
)

const defaultBaseURL = "https://api.acoustid.org/v2/lookup"

// DefaultMinConfidence is the score below which a match is not trusted.
const DefaultMinConfidence = 0.8

// Match is one candidate identification. A recording appearing on several
// release groups yields one Match per release group so callers can pick the
// right album.
type Match struct {
	AcoustID    string
	Score       float64
	RecordingID string
	Title       string
	Artist      string
	ArtistID    string
	Duration    float64

	Album          string
	ReleaseGroupID string
	ReleaseType    string
	SecondaryTypes []string
}

// Client queries the AcoustID lookup endpoint. The service allows three
// requests per second per application; the built-in limiter enforces that
// across goroutines.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(3), 1),
		userAgent:  "music-minder/" + util.Version,
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// lookupURL builds the request URL by hand. The meta parameter uses literal
// + separators; the API treats an encoded %2B as part of the field name and
// silently drops the requested metadata, so this must never go through
// url.Values.
func (c *Client) lookupURL(fp *fingerprint.Fingerprint) string {
	return fmt.Sprintf(
		"%s?client=%s&duration=%d&fingerprint=%s&meta=recordings+releasegroups+compress",
		c.baseURL,
		url.QueryEscape(c.apiKey),
		int(fp.Duration),
		url.QueryEscape(fp.Data),
	)
}

// Lookup identifies a fingerprint and returns matches sorted best first.
// Rate-limit and service-unavailable responses are retried with backoff
// before giving up.
func (c *Client) Lookup(ctx context.Context, fp *fingerprint.Fingerprint) ([]Match, error) {
	resp, err := util.RetryWithBackoff(util.RemoteRetryConfig(), func() (*lookupResponse, error) {
		return c.doLookup(ctx, fp)
	}, "acoustid lookup")
	if err != nil {
		return nil, err
	}

	if resp.Status != "ok" {
		msg := "unknown error"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, &Error{Kind: KindBadResponse, Msg: msg}
	}

	matches := toMatches(resp)
	if len(matches) == 0 {
		return nil, &Error{Kind: KindNoMatches, Msg: "no results for fingerprint"}
	}
	return matches, nil
}

func (c *Client) doLookup(ctx context.Context, fp *fingerprint.Fingerprint) (*lookupResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL(fp), nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Msg: "building request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Msg: "lookup request", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// message text matters: the retry layer matches on it
		return nil, &Error{Kind: KindRateLimited, Msg: "rate limited by service"}
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &Error{Kind: KindNetwork, Msg: "service unavailable"}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, &Error{Kind: KindNetwork, Msg: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body)}
	}

	var parsed lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Kind: KindBadResponse, Msg: "decoding response", Err: err}
	}
	return &parsed, nil
}

// toMatches flattens the response into one Match per recording and release
// group, keeping the result's confidence score on each.
func toMatches(resp *lookupResponse) []Match {
	var matches []Match
	for _, result := range resp.Results {
		for _, rec := range result.Recordings {
			base := Match{
				AcoustID:    result.ID,
				Score:       result.Score,
				RecordingID: rec.ID,
				Title:       rec.Title,
				Duration:    rec.Duration,
			}
			if len(rec.Artists) > 0 {
				base.Artist = rec.Artists[0].Name
				base.ArtistID = rec.Artists[0].ID
			}

			if len(rec.ReleaseGroups) == 0 {
				matches = append(matches, base)
				continue
			}
			for _, rg := range rec.ReleaseGroups {
				m := base
				m.Album = rg.Title
				m.ReleaseGroupID = rg.ID
				m.ReleaseType = rg.Type
				m.SecondaryTypes = rg.SecondaryTypes
				matches = append(matches, m)
			}
		}
	}
	return matches
}
