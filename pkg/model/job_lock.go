package model

import "time"

// JobLock is a TTL-bounded mutual exclusion record. Key is the job name
// plus a deterministic time-bucket anchor, so repeated scheduler ticks
// inside one window contend for the same document.
type JobLock struct {
	Key       string    `json:"key" bson:"_id" validate:"required"`
	Owner     string    `json:"owner" bson:"owner" validate:"required"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at" validate:"required"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (l *JobLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
