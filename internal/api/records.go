package api

import (
	"context"
	"net/http"
	"net/url"

	"jobtracker/client/internal/models"
	"jobtracker/client/internal/telemetry"

	"go.uber.org/zap"
)

// Requester is the transport the services are built on.
type Requester interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error
}

// RecordService is a typed pass-through to the application endpoints. It does
// not validate and does not cache; payloads are returned as the server sent
// them.
type RecordService struct {
	requester Requester
	logger    *zap.Logger
}

func NewRecordService(logger *zap.Logger, requester Requester) *RecordService {
	return &RecordService{
		requester: requester,
		logger:    logger,
	}
}

func (s *RecordService) List(ctx context.Context, query models.ViewQuery) (*models.ListPage, error) {
	ctx, span := tracer.Start(ctx, "RecordService.List")
	defer span.End()

	span.SetAttributes(
		telemetry.Int("query.page", query.Page),
		telemetry.String("query.keyword", query.Keyword),
		telemetry.String("query.status", string(query.Status)),
	)

	var page models.ListPage
	if err := s.requester.Do(ctx, http.MethodGet, "/applications", query.Params(), nil, &page); err != nil {
		return nil, err
	}

	s.logger.Debug("listed applications",
		zap.Int("page", query.Page),
		zap.Int("count", len(page.Content)),
		zap.Int("total_pages", page.TotalPages))
	return &page, nil
}

func (s *RecordService) Get(ctx context.Context, id models.RecordID) (*models.ApplicationRecord, error) {
	ctx, span := tracer.Start(ctx, "RecordService.Get")
	defer span.End()
	span.SetAttributes(telemetry.Int64("application.id", int64(id)))

	var record models.ApplicationRecord
	if err := s.requester.Do(ctx, http.MethodGet, joinPath("applications", id), nil, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RecordService) Create(ctx context.Context, input models.ApplicationInput) (*models.ApplicationRecord, error) {
	ctx, span := tracer.Start(ctx, "RecordService.Create")
	defer span.End()

	var record models.ApplicationRecord
	if err := s.requester.Do(ctx, http.MethodPost, "/applications", nil, input, &record); err != nil {
		return nil, err
	}

	s.logger.Info("created application", zap.Int64("id", int64(record.ID)))
	return &record, nil
}

func (s *RecordService) Update(ctx context.Context, id models.RecordID, input models.ApplicationInput) (*models.ApplicationRecord, error) {
	ctx, span := tracer.Start(ctx, "RecordService.Update")
	defer span.End()
	span.SetAttributes(telemetry.Int64("application.id", int64(id)))

	var record models.ApplicationRecord
	if err := s.requester.Do(ctx, http.MethodPut, joinPath("applications", id), nil, input, &record); err != nil {
		return nil, err
	}

	s.logger.Info("updated application", zap.Int64("id", int64(id)))
	return &record, nil
}

func (s *RecordService) Remove(ctx context.Context, id models.RecordID) error {
	ctx, span := tracer.Start(ctx, "RecordService.Remove")
	defer span.End()
	span.SetAttributes(telemetry.Int64("application.id", int64(id)))

	if err := s.requester.Do(ctx, http.MethodDelete, joinPath("applications", id), nil, nil, nil); err != nil {
		return err
	}

	s.logger.Info("deleted application", zap.Int64("id", int64(id)))
	return nil
}

func (s *RecordService) Stats(ctx context.Context) (*models.StatisticsSnapshot, error) {
	ctx, span := tracer.Start(ctx, "RecordService.Stats")
	defer span.End()

	var stats models.StatisticsSnapshot
	if err := s.requester.Do(ctx, http.MethodGet, "/applications/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
