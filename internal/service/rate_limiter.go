package service

import (
	"sync"
	"time"
)

// AnonReportRateLimit caps how many anonymous reports a single IP may file
// within a sliding window. Authenticated reporters are not limited.
type AnonReportRateLimit struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	window   time.Duration
	maxReqs  int
}

func NewAnonReportRateLimit(window time.Duration, maxReqs int) *AnonReportRateLimit {
	return &AnonReportRateLimit{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
	}
}

// Check records a submission from ip and reports whether it stays within the
// window cap.
func (r *AnonReportRateLimit) Check(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// Age out entries that left the window, reusing the backing array
	kept := r.requests[ip][:0]
	for _, t := range r.requests[ip] {
		if now.Sub(t) < r.window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.maxReqs {
		r.requests[ip] = kept
		return false
	}

	r.requests[ip] = append(kept, now)
	return true
}
