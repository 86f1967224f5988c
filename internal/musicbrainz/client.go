// Package musicbrainz looks up recordings by MBID to flesh out matches
// found through AcoustID.
//
// MusicBrainz requires an identifying User-Agent and limits anonymous
// clients to one request per second.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/music-minder/internal/util"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Recording is the enriched metadata for one MusicBrainz recording,
// resolved against its best release.
type Recording struct {
	RecordingID string
	Title       string
	Artist      string
	ArtistID    string
	DurationMs  int64

	Album       string
	ReleaseID   string
	TrackNumber *int
	TotalTracks *int
	Year        *int
	ReleaseType string
}

// Client queries the MusicBrainz web service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewClient creates a client with the mandated rate limit.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		userAgent:  fmt.Sprintf("music-minder/%s (https://github.com/franz/music-minder)", util.Version),
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// LookupRecording fetches a recording with its artists and releases and
// resolves it against the most official release available.
func (c *Client) LookupRecording(ctx context.Context, recordingID string) (*Recording, error) {
	resp, err := util.RetryWithBackoff(util.RemoteRetryConfig(), func() (*recordingResponse, error) {
		return c.fetchRecording(ctx, recordingID)
	}, "musicbrainz recording lookup")
	if err != nil {
		return nil, err
	}
	return toRecording(resp), nil
}

func (c *Client) fetchRecording(ctx context.Context, recordingID string) (*recordingResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/recording/%s?fmt=json&inc=artists+releases+release-groups+media", c.baseURL, recordingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("recording %s: %w", recordingID, util.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("musicbrainz: rate limited")
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("musicbrainz: service unavailable")
	case resp.StatusCode != http.StatusOK:
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("musicbrainz: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("musicbrainz: HTTP %d", resp.StatusCode)
	}

	var parsed recordingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("musicbrainz: decoding response: %w", err)
	}
	return &parsed, nil
}

// toRecording resolves the wire response against its best release:
// official albums first, then any official release, then whatever exists.
func toRecording(resp *recordingResponse) *Recording {
	rec := &Recording{
		RecordingID: resp.ID,
		Title:       resp.Title,
		DurationMs:  resp.Length,
		Artist:      joinArtistCredits(resp.ArtistCredit),
	}
	if len(resp.ArtistCredit) > 0 {
		rec.ArtistID = resp.ArtistCredit[0].Artist.ID
	}

	release := pickRelease(resp.Releases)
	if release == nil {
		return rec
	}

	rec.Album = release.Title
	rec.ReleaseID = release.ID
	if release.ReleaseGroup != nil {
		rec.ReleaseType = release.ReleaseGroup.PrimaryType
	}
	if y := parseYear(release.Date); y != nil {
		rec.Year = y
	}
	if len(release.Media) > 0 {
		medium := release.Media[0]
		if medium.TrackCount > 0 {
			n := medium.TrackCount
			rec.TotalTracks = &n
		}
		if len(medium.Tracks) > 0 && medium.Tracks[0].Position > 0 {
			n := medium.Tracks[0].Position
			rec.TrackNumber = &n
		}
	}
	return rec
}

func pickRelease(releases []release) *release {
	for i := range releases {
		r := &releases[i]
		if r.Status == "Official" && r.ReleaseGroup != nil && r.ReleaseGroup.PrimaryType == "Album" {
			return r
		}
	}
	for i := range releases {
		if releases[i].Status == "Official" {
			return &releases[i]
		}
	}
	if len(releases) > 0 {
		return &releases[0]
	}
	return nil
}

// joinArtistCredits builds a display string like "Queen & David Bowie" from
// credited names and join phrases.
func joinArtistCredits(credits []artistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(c.JoinPhrase)
	}
	return b.String()
}

// parseYear extracts the year from YYYY, YYYY-MM, or YYYY-MM-DD dates.
func parseYear(date string) *int {
	if date == "" {
		return nil
	}
	head, _, _ := strings.Cut(date, "-")
	y, err := strconv.Atoi(head)
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}
