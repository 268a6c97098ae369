package repository

import (
	"context"

	"fabricviz/internal/domain"
)

// SampleRepository defines the interface for telemetry sample storage
type SampleRepository interface {
	// Write operations
	InsertSample(ctx context.Context, s *domain.Sample) error
	PruneSamples(ctx context.Context, keep int) (int64, error)

	// Read operations
	RecentSamples(ctx context.Context, limit int) ([]domain.Sample, error)
	CountSamples(ctx context.Context) (int, error)

	// Close releases resources
	Close() error
}
