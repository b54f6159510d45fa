package mocks

import (
	"context"
	"errors"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
)

// MockRecordFetcher is a mock implementation of the RecordFetcher interface
// for testing the service layer.
type MockRecordFetcher struct {
	ListFunc  func(ctx context.Context, q models.Query) ([]models.Record, error)
	CountFunc func(ctx context.Context, q models.Query) (int64, error)
}

// List implements the RecordFetcher interface
func (m *MockRecordFetcher) List(ctx context.Context, q models.Query) ([]models.Record, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, q)
	}
	return nil, errors.New("ListFunc not implemented")
}

// Count implements the RecordFetcher interface
func (m *MockRecordFetcher) Count(ctx context.Context, q models.Query) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, q)
	}
	return 0, errors.New("CountFunc not implemented")
}
