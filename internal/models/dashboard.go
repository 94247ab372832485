package models

import "time"

// DashboardStats carries the admin dashboard counters.
//
// Role counters count memberships: an account holding both Tutor and Student
// increments both. TotalMembers counts distinct approved accounts holding at
// least one non-admin role, so degenerate multi-role data never double counts
// the member total.
type DashboardStats struct {
	TotalMembers int       `json:"total_members"`
	TutorCount   int       `json:"tutor_count"`
	StudentCount int       `json:"student_count"`
	PendingCount int       `json:"pending_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SystemMetrics is a lightweight aggregate snapshot of the process metrics
// exposed alongside the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
