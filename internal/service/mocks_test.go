package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/ocr"
)

// MockReportStore is a mock implementation of domain.ReportStore
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Insert(ctx context.Context, report *domain.Report) (string, error) {
	args := m.Called(ctx, report)
	return args.String(0), args.Error(1)
}

func (m *MockReportStore) ListAll(ctx context.Context) ([]*domain.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Report), args.Error(1)
}

func (m *MockReportStore) DeleteAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockReportStore) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockReportStore) Close() error {
	return m.Called().Error(0)
}

// MockClassifier is a mock implementation of domain.Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, features []bool) (*domain.Classification, error) {
	args := m.Called(ctx, features)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Classification), args.Error(1)
}

func (m *MockClassifier) Labels() []string {
	return m.Called().Get(0).([]string)
}

// MockAcquirer is a mock implementation of TextAcquirer
type MockAcquirer struct {
	mock.Mock
}

func (m *MockAcquirer) Acquire(ctx context.Context, doc ocr.Document) (*ocr.Result, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ocr.Result), args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}
