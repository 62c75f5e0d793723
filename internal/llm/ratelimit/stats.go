package ratelimit

import (
	"sync/atomic"
	"time"
)

// Stats summarizes how much pacing delayed requests during a run.
type Stats struct {
	// PacedRequests is the number of requests that had to wait for a token.
	PacedRequests int64
	// TotalWait is the summed wait across paced requests.
	TotalWait time.Duration
	// MaxWait is the longest single wait.
	MaxWait time.Duration
}

type stats struct {
	paced     atomic.Int64
	totalWait atomic.Int64
	maxWait   atomic.Int64
}

func (s *stats) record(d time.Duration) {
	s.paced.Add(1)
	s.totalWait.Add(int64(d))
	for {
		current := s.maxWait.Load()
		if int64(d) <= current || s.maxWait.CompareAndSwap(current, int64(d)) {
			return
		}
	}
}

func (s *stats) snapshot() Stats {
	return Stats{
		PacedRequests: s.paced.Load(),
		TotalWait:     time.Duration(s.totalWait.Load()),
		MaxWait:       time.Duration(s.maxWait.Load()),
	}
}
