package queue

import (
	"errors"
	"time"
)

type Status string

const (
	StatusQueued Status = "queued"
)

// Job is a verified webhook delivery waiting for a downstream consumer.
type Job struct {
	ID           string
	Receiver     string
	EventType    string
	Payload      []byte
	Status       Status
	SubmittedBy  string
	DedupeKey    *string
	Verification string
	RequestID    *string
	CreatedAt    time.Time
}

type EnqueueRequest struct {
	Receiver    string
	EventType   string
	Payload     []byte
	SubmittedBy string
	// DedupeKey suppresses repeats of the same delivery within the dedupe TTL.
	DedupeKey string
	// Verification records the signature outcome that admitted the request.
	Verification string
	RequestID    string
}

// EnqueueResult reports the job id and whether an existing job was reused.
type EnqueueResult struct {
	JobID     string
	Duplicate bool
}

// ListFilter narrows List results. Limit <= 0 selects DefaultListLimit.
type ListFilter struct {
	Receiver string
	Limit    int
}

const DefaultListLimit = 50

var ErrJobNotFound = errors.New("job not found")
