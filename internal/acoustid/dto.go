package acoustid

// Wire types matching the AcoustID lookup response. These stay inside the
// package; callers get Match values instead.
// API reference: https://acoustid.org/webservice#lookup

type lookupResponse struct {
	Status  string         `json:"status"`
	Results []lookupResult `json:"results"`
	Error   *apiError      `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lookupResult struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Duration      float64        `json:"duration"`
	Artists       []artist       `json:"artists"`
	ReleaseGroups []releaseGroup `json:"releasegroups"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type releaseGroup struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	SecondaryTypes []string `json:"secondarytypes"`
}
