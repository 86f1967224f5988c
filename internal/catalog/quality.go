package catalog

import (
	"time"
)

// QualityStats summarizes the metadata quality of the whole library.
type QualityStats struct {
	Total     int
	Unchecked int
	Excellent int
	Good      int
	Fair      int
	Poor      int
	Average   float64
}

// GetTracksNeedingQualityCheck returns up to limit tracks that have never
// been assessed or whose assessment is older than cutoff, oldest first.
// Timestamps are stored in UTC, so the cutoff is normalized to match.
func (s *Store) GetTracksNeedingQualityCheck(limit int, cutoff time.Time) ([]*Track, error) {
	return s.queryTracks(trackSelect+`
		WHERE t.quality_checked_at IS NULL OR t.quality_checked_at < ?
		ORDER BY t.quality_checked_at IS NOT NULL, t.quality_checked_at
		LIMIT ?`, cutoff.UTC(), limit)
}

// UpdateTrackQuality records an assessment result for a track.
func (s *Store) UpdateTrackQuality(id int64, score int, flags int64) error {
	_, err := s.db.Exec(`
		UPDATE tracks SET quality_score = ?, quality_flags = ?, quality_checked_at = ?
		WHERE id = ?`, score, flags, time.Now().UTC(), id)
	if err != nil {
		return wrapError("update track quality", err)
	}
	return nil
}

// GetQualityStats aggregates library quality counts by tier. Tier bounds:
// Excellent >= 90, Good 70-89, Fair 50-69, Poor below 50.
func (s *Store) GetQualityStats() (*QualityStats, error) {
	stats := &QualityStats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COUNT(*) - COUNT(quality_score),
			COALESCE(SUM(quality_score >= 90), 0),
			COALESCE(SUM(quality_score >= 70 AND quality_score < 90), 0),
			COALESCE(SUM(quality_score >= 50 AND quality_score < 70), 0),
			COALESCE(SUM(quality_score < 50), 0),
			COALESCE(AVG(quality_score), 0)
		FROM tracks
	`).Scan(&stats.Total, &stats.Unchecked, &stats.Excellent, &stats.Good,
		&stats.Fair, &stats.Poor, &stats.Average)
	if err != nil {
		return nil, wrapError("quality stats", err)
	}
	return stats, nil
}

// GetTracksBelowQuality returns assessed tracks scoring under the given
// threshold, worst first.
func (s *Store) GetTracksBelowQuality(threshold, limit int) ([]*Track, error) {
	return s.queryTracks(trackSelect+`
		WHERE t.quality_score IS NOT NULL AND t.quality_score < ?
		ORDER BY t.quality_score, t.path
		LIMIT ?`, threshold, limit)
}
