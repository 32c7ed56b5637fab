package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// JWTClaims represents the JWT payload for access tokens issued by the
// platform's auth service. This API only validates them.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SystemMetrics is a lightweight aggregate of runtime counters exposed on
// the ops endpoint alongside the Prometheus scrape.
type SystemMetrics struct {
	CacheHitRatio              float64   `json:"cache_hit_ratio"`
	CacheHits                  uint64    `json:"cache_hits"`
	CacheMisses                uint64    `json:"cache_misses"`
	RequestsTotal              uint64    `json:"requests_total"`
	AverageRequestDurationMs   float64   `json:"average_request_duration_ms"`
	AllocationsTotal           uint64    `json:"allocations_total"`
	ConflictsDetectedTotal     uint64    `json:"conflicts_detected_total"`
	ConflictsResolvedTotal     uint64    `json:"conflicts_resolved_total"`
	SessionsRedistributedTotal uint64    `json:"sessions_redistributed_total"`
	OverloadedTopicsTotal      uint64    `json:"overloaded_topics_total"`
	Goroutines                 int       `json:"goroutines"`
	GeneratedAt                time.Time `json:"generated_at"`
}
