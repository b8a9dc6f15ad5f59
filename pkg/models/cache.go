package models

import "time"

// CacheEntry is one stored suggestion keyed by description fingerprint.
type CacheEntry struct {
	Fingerprint string      `json:"fingerprint"`
	SourceText  string      `json:"source_text"`
	ProjectType ProjectType `json:"project_type"`
	PageList    []string    `json:"page_list"`
	Explanation string      `json:"explanation"`
	CreatedAt   time.Time   `json:"created_at"`
	UseCount    int64       `json:"use_count"`
	LastUsedAt  time.Time   `json:"last_used_at"`
}

// Suggestion returns the cached model output.
func (e CacheEntry) Suggestion() Suggestion {
	return Suggestion{
		ProjectType: e.ProjectType,
		PageList:    e.PageList,
		Explanation: e.Explanation,
	}
}

// CacheStats reports aggregate cache usage.
type CacheStats struct {
	Entries   int64 `json:"entries"`
	TotalUses int64 `json:"total_uses"`
}

// Reused is the number of requests answered without a model call.
func (s CacheStats) Reused() int64 {
	if s.TotalUses < s.Entries {
		return 0
	}
	return s.TotalUses - s.Entries
}

// ReuseRate is Reused as a percentage of Entries.
func (s CacheStats) ReuseRate() float64 {
	if s.Entries == 0 {
		return 0
	}
	return float64(s.Reused()) / float64(s.Entries) * 100
}

// Savings estimates the model spend avoided at costPerCall per generation.
func (s CacheStats) Savings(costPerCall float64) float64 {
	return float64(s.Reused()) * costPerCall
}
