package service

import (
	"context"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
)

// RecordFetcher lists and counts business records by kind and filter.
type RecordFetcher interface {
	List(ctx context.Context, q models.Query) ([]models.Record, error)
	Count(ctx context.Context, q models.Query) (int64, error)
}
