package domain

import "time"

// BuildInfo records how a job output came to be in the cache.
type BuildInfo struct {
	Artifact  Hash      `json:"artifact,omitzero"`
	Step      string    `json:"step,omitzero"`
	Output    string    `json:"output,omitzero"`
	Job       Hash      `json:"job,omitzero"`
	RunID     string    `json:"run_id,omitzero"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// CacheEntry describes one value stored in the build repository.
type CacheEntry struct {
	Hash    Hash
	Size    int64
	ModTime time.Time
	// Info is the build record of the value, nil when none was kept.
	Info *BuildInfo
}
