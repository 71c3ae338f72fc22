package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// HighScore is a named record value.
type HighScore struct {
	Key       string    `db:"key" json:"key"`
	Score     int       `db:"score" json:"score"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GameResult is one finished game as stored in game_results.
type GameResult struct {
	ID           int           `db:"id" json:"id"`
	SessionID    string        `db:"session_id" json:"session_id"`
	PlayerName   string        `db:"player_name" json:"player_name"`
	Score        int           `db:"score" json:"score"`
	Tally        pq.Int64Array `db:"tally" json:"tally"`
	Merges       int           `db:"merges" json:"merges"`
	Drops        int           `db:"drops" json:"drops"`
	NewHighScore bool          `db:"new_high_score" json:"new_high_score"`
	StartedAt    time.Time     `db:"started_at" json:"started_at"`
	EndedAt      time.Time     `db:"ended_at" json:"ended_at"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// AdminAccount is an operator allowed to use the admin routes.
type AdminAccount struct {
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	AllowedIPs  pq.StringArray `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminAudit is one admin_audit row.
type AdminAudit struct {
	ID            int             `db:"id" json:"id"`
	AdminUsername string          `db:"admin_username" json:"admin_username"`
	IP            string          `db:"ip" json:"ip"`
	Route         string          `db:"route" json:"route"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	Success       bool            `db:"success" json:"success"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
