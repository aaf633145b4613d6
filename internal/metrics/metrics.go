// Package metrics keeps lightweight in-process counters exposed at /metrics.
// Counts are advisory, never authoritative.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type requestStats struct {
	Count         int64   `json:"count"`
	TotalDuration float64 `json:"total_duration_seconds"`
}

// Registry accumulates request and domain counters.
type Registry struct {
	mu           sync.Mutex
	requests     map[string]*requestStats
	postsCreated int64
}

func NewRegistry() *Registry {
	return &Registry{requests: make(map[string]*requestStats)}
}

// ObserveRequest records one handled request.
func (r *Registry) ObserveRequest(method, path string, status int, duration time.Duration) {
	key := method + " " + path + " " + http.StatusText(status)
	r.mu.Lock()
	stats, ok := r.requests[key]
	if !ok {
		stats = &requestStats{}
		r.requests[key] = stats
	}
	stats.Count++
	stats.TotalDuration += duration.Seconds()
	r.mu.Unlock()
}

// IncPostsCreated bumps the posts-created counter.
func (r *Registry) IncPostsCreated() {
	r.mu.Lock()
	r.postsCreated++
	r.mu.Unlock()
}

// PostsCreated returns the current posts-created count.
func (r *Registry) PostsCreated() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.postsCreated
}

// Handler serves the counters as JSON.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		snapshot := struct {
			Requests     map[string]*requestStats `json:"http_requests"`
			PostsCreated int64                    `json:"posts_created_total"`
		}{
			Requests:     make(map[string]*requestStats, len(r.requests)),
			PostsCreated: r.postsCreated,
		}
		for key, stats := range r.requests {
			copied := *stats
			snapshot.Requests[key] = &copied
		}
		r.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot)
	}
}
