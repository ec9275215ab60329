package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Session groups the samples of one pipeline run.
type Session struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Label     string    `json:"label"`
}
