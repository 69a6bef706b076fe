package models

import "time"

// Session is a server-tracked record of an authenticated login
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
}

// SessionStats is a point-in-time aggregation over the session registry
type SessionStats struct {
	ActiveSessions     int           `json:"active_sessions"`
	DistinctUsers      int           `json:"distinct_users"`
	ActiveLast5Minutes int           `json:"active_last_5_minutes"`
	ActiveLastHour     int           `json:"active_last_hour"`
	AverageDuration    time.Duration `json:"average_duration_ns"`
}

// SuspiciousIP is an address under a standing ban
type SuspiciousIP struct {
	IPAddress  string    `json:"ip_address"`
	Reason     string    `json:"reason"`
	UserAgent  string    `json:"user_agent,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}
