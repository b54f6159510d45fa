package mocks

import (
	"context"
	"errors"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
)

// MockMetricEntryStore is a function-field MetricEntryStore.
type MockMetricEntryStore struct {
	MockRecordFetcher
	ReplaceBySourceFunc func(ctx context.Context, rec models.Record) (int64, error)
	DeleteBySourceFunc  func(ctx context.Context, doctype, document string) (int64, error)
}

func (m *MockMetricEntryStore) ReplaceBySource(ctx context.Context, rec models.Record) (int64, error) {
	if m.ReplaceBySourceFunc != nil {
		return m.ReplaceBySourceFunc(ctx, rec)
	}
	return 0, errors.New("ReplaceBySourceFunc not implemented")
}

func (m *MockMetricEntryStore) DeleteBySource(ctx context.Context, doctype, document string) (int64, error) {
	if m.DeleteBySourceFunc != nil {
		return m.DeleteBySourceFunc(ctx, doctype, document)
	}
	return 0, errors.New("DeleteBySourceFunc not implemented")
}
