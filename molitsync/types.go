package molitsync

import (
	"sync"
	"time"
)

const maxResultErrors = 100

// CollectionResult summarizes one collection run. Errors holds at most
// maxResultErrors messages; DroppedErrors counts the overflow so the true
// failure volume is never hidden. appendError is safe from concurrent
// fetch workers.
type CollectionResult struct {
	mu sync.Mutex

	Entity        string         `json:"entity"`
	RunId         uint           `json:"run_id,omitempty"`
	Fetched       int            `json:"fetched"`
	Saved         int            `json:"saved"`
	Skipped       int            `json:"skipped"`
	Unresolved    int            `json:"unresolved"`
	Errors        []string       `json:"errors,omitempty"`
	DroppedErrors int            `json:"dropped_errors,omitempty"`
	Stats         map[string]int `json:"stats,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

func (r *CollectionResult) appendError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Errors) >= maxResultErrors {
		r.DroppedErrors++
		return
	}
	r.Errors = append(r.Errors, msg)
}

func (r *CollectionResult) addStat(key string, delta int) {
	if r.Stats == nil {
		r.Stats = map[string]int{}
	}
	r.Stats[key] += delta
}

func (r *CollectionResult) errorCount() int {
	return len(r.Errors) + r.DroppedErrors
}
