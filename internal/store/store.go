package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/railbird/handreel/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// batchChunkSize bounds how many statements go into one batched
// write/delete, mirroring the batch-op limit of document stores.
const batchChunkSize = 500

// HandNumber pairs a persisted hand with its final sequential number.
type HandNumber struct {
	ID     uuid.UUID
	Number int
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	// UpdateJobLocked runs fn against the current job inside a
	// transaction holding a row lock, then writes the mutated job back.
	// This is the single-document transaction of the pipeline: every
	// counter increment, accumulator merge, and phase transition goes
	// through here so concurrent segment completions cannot lose updates.
	UpdateJobLocked(ctx context.Context, id uuid.UUID, fn func(job *models.AnalysisJob) error) (*models.AnalysisJob, error)

	CreateHand(ctx context.Context, hand *models.Hand) error
	// FindHandNear returns a hand for the stream whose start timestamp is
	// within tolerance seconds of tsStart, or ErrNotFound.
	FindHandNear(ctx context.Context, streamID string, tsStart, tolerance int) (*models.Hand, error)
	ListHandsByStream(ctx context.Context, streamID string) ([]*models.Hand, error)
	// UpdateHandNumbers writes final sequential numbers in bounded batches.
	UpdateHandNumbers(ctx context.Context, numbers []HandNumber) error
	// DeleteHands removes duplicate hands in bounded batches.
	DeleteHands(ctx context.Context, ids []uuid.UUID) error

	// UpsertStreamStatus writes analysis status (and optionally the final
	// hand count) through to the stream catalog.
	UpsertStreamStatus(ctx context.Context, streamID, status string, handsCount *int) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
