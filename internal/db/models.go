// Package db stores run and query history in SQLite.
package db

import "time"

// Run is one successful generation.
type Run struct {
	ID         string
	Topic      string
	Model      string
	Specialist string
	Langs      []string
	Output     string
	AudioURL   string
	CreatedAt  time.Time
}

// Query is one successful vector-store query.
type Query struct {
	ID        string
	Text      string
	Result    string
	CreatedAt time.Time
}
