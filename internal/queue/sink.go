package queue

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// DeadLetterSink receives jobs that exhausted their retry envelope.
// Implementations must not retry; the caller logs any error.
type DeadLetterSink interface {
	Record(ctx context.Context, dl domain.DeadLetter) error
}

// DBSink appends dead letters to the dead_letters table.
type DBSink struct {
	DB *gorm.DB
}

// Record stores dl.
func (s DBSink) Record(ctx context.Context, dl domain.DeadLetter) error {
	return repo.CreateDeadLetter(ctx, s.DB, &dl)
}
