package musicbrainz

// Wire types for the /recording lookup with artists, releases, release
// groups, and media includes.

type recordingResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int64          `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Artist     artistInfo `json:"artist"`
	Name       string     `json:"name"`
	JoinPhrase string     `json:"joinphrase"`
}

type artistInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
}

type release struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Status       string        `json:"status"`
	Date         string        `json:"date"`
	Country      string        `json:"country"`
	ReleaseGroup *releaseGroup `json:"release-group"`
	Media        []medium      `json:"media"`
}

type releaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary-type"`
	FirstReleaseDate string `json:"first-release-date"`
}

type medium struct {
	Position   int         `json:"position"`
	Format     string      `json:"format"`
	TrackCount int         `json:"track-count"`
	Tracks     []trackInfo `json:"tracks"`
}

type trackInfo struct {
	Position int    `json:"position"`
	Number   string `json:"number"`
	Title    string `json:"title"`
	Length   int64  `json:"length"`
}
