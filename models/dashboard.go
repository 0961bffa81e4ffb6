package models

// ExternalMetadata is display data fetched live from a catalog provider.
// It is never persisted.
type ExternalMetadata struct {
	Title string `json:"title,omitempty"`
	Image string `json:"image,omitempty"`
	Year  int    `json:"year,omitempty"`
	MALID string `json:"mal_id,omitempty"`
}

// IsZero reports whether no metadata was found
func (m ExternalMetadata) IsZero() bool {
	return m == ExternalMetadata{}
}

// DashboardItem is a watch record with its metadata merged in. When
// enrichment is unavailable the metadata fields are left empty.
type DashboardItem struct {
	WatchRecord
	ExternalMetadata
}

// Dashboard is the continue-watching response
type Dashboard struct {
	Movies      []DashboardItem `json:"movies"`
	Series      []DashboardItem `json:"series"`
	AnimeMovies []DashboardItem `json:"animeMovies"`
	AnimeSeries []DashboardItem `json:"animeSeries"`
}

// RawDashboardItems wraps records without metadata
func RawDashboardItems(rows []WatchRecord) []DashboardItem {
	items := make([]DashboardItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, DashboardItem{WatchRecord: row})
	}
	return items
}
