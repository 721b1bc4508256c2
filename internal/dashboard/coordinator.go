package dashboard

import (
	"context"
	stderrors "errors"
	"sync"

	"jobtracker/client/internal/errors"
	"jobtracker/client/internal/models"
	"jobtracker/client/internal/notify"
	"jobtracker/client/internal/telemetry"

	"go.uber.org/zap"
)

const (
	CreatedNotice      = "Application created successfully!"
	UpdatedNotice      = "Application updated successfully!"
	SaveFailedNotice   = "Failed to save application"
	DeletedNotice      = "Application deleted successfully!"
	DeleteFailedNotice = "Failed to delete application"

	DeletePrompt = "Are you sure you want to delete this application?"
)

var ErrSurfaceClosed = stderrors.New("edit surface is not open")

type RecordMutator interface {
	Get(ctx context.Context, id models.RecordID) (*models.ApplicationRecord, error)
	Create(ctx context.Context, input models.ApplicationInput) (*models.ApplicationRecord, error)
	Update(ctx context.Context, id models.RecordID, input models.ApplicationInput) (*models.ApplicationRecord, error)
	Remove(ctx context.Context, id models.RecordID) error
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// EditSurface is the create/edit form. Editing is nil for a new record.
// Error and FieldErrors hold the outcome of the last failed submit.
type EditSurface struct {
	Open        bool
	Editing     *models.ApplicationRecord
	Form        models.ApplicationInput
	Error       string
	FieldErrors map[string]string
}

// Coordinator runs create, update and delete, then brings the list and the
// statistics back in line with the server, in that order.
type Coordinator struct {
	records   RecordMutator
	list      Refresher
	stats     Refresher
	confirmer Confirmer
	reporter  notify.Reporter
	logger    *zap.Logger

	mu      sync.Mutex
	surface EditSurface
	// opened counts every open and close of the surface. A submit applies
	// its outcome only to the surface it was started from.
	opened  uint64
}

func NewCoordinator(logger *zap.Logger, records RecordMutator, list, stats Refresher, confirmer Confirmer, reporter notify.Reporter) *Coordinator {
	return &Coordinator{
		records:   records,
		list:      list,
		stats:     stats,
		confirmer: confirmer,
		reporter:  reporter,
		logger:    logger,
	}
}

func (c *Coordinator) Surface() EditSurface {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.surface
	if s.Editing != nil {
		rec := *s.Editing
		s.Editing = &rec
	}
	return s
}

// OpenNew opens an empty form.
func (c *Coordinator) OpenNew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	c.surface = EditSurface{
		Open: true,
		Form: models.NewApplicationInput(),
	}
}

// OpenEdit opens the form on record.
func (c *Coordinator) OpenEdit(record models.ApplicationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	c.surface = EditSurface{
		Open:    true,
		Editing: &record,
		Form:    record.Input(),
	}
}

// OpenEditByID loads the record from the server and opens the form on it.
func (c *Coordinator) OpenEditByID(ctx context.Context, id models.RecordID) error {
	record, err := c.records.Get(ctx, id)
	if err != nil {
		c.logger.Warn("failed to load application for editing",
			zap.Int64("id", int64(id)),
			zap.Error(err))
		c.reporter.NotifyError(messageFor(err, "Failed to load application"))
		return err
	}
	c.OpenEdit(*record)
	return nil
}

func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Coordinator) closeLocked() {
	c.opened++
	c.surface = EditSurface{}
}

// Submit saves input as a new record, or over the record being edited. On
// failure the surface stays open with the server's message and nothing is
// refetched.
func (c *Coordinator) Submit(ctx context.Context, input models.ApplicationInput) error {
	ctx, span := tracer.Start(ctx, "Coordinator.Submit")
	defer span.End()

	c.mu.Lock()
	if !c.surface.Open {
		c.mu.Unlock()
		return ErrSurfaceClosed
	}
	editing := c.surface.Editing
	opened := c.opened
	c.surface.Form = input
	c.mu.Unlock()

	var (
		saved  *models.ApplicationRecord
		err    error
		notice string
	)
	if editing != nil {
		span.SetAttributes(telemetry.Int64("application.id", int64(editing.ID)))
		saved, err = c.records.Update(ctx, editing.ID, input)
		notice = UpdatedNotice
	} else {
		saved, err = c.records.Create(ctx, input)
		notice = CreatedNotice
	}

	if err != nil {
		span.RecordError(err)
		message := messageFor(err, SaveFailedNotice)
		c.mu.Lock()
		if c.opened == opened {
			c.surface.Error = message
			c.surface.FieldErrors = errors.FieldErrors(err)
		}
		c.mu.Unlock()

		c.logger.Warn("failed to save application", zap.Error(err))
		c.reporter.NotifyError(message)
		return err
	}

	c.mu.Lock()
	if c.opened == opened {
		c.closeLocked()
	}
	c.mu.Unlock()
	c.logger.Info("saved application", zap.Int64("id", int64(saved.ID)))
	c.reporter.NotifySuccess(notice)
	c.refresh(ctx)
	return nil
}

// Remove deletes a record once the user confirms. Declining does nothing.
// The list keeps showing the record until the refetch after a successful
// delete.
func (c *Coordinator) Remove(ctx context.Context, id models.RecordID) error {
	if !c.confirmer.Confirm(ctx, DeletePrompt) {
		c.logger.Debug("delete cancelled", zap.Int64("id", int64(id)))
		return nil
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Remove")
	defer span.End()
	span.SetAttributes(telemetry.Int64("application.id", int64(id)))

	if err := c.records.Remove(ctx, id); err != nil {
		span.RecordError(err)
		c.logger.Warn("failed to delete application",
			zap.Int64("id", int64(id)),
			zap.Error(err))
		c.reporter.NotifyError(DeleteFailedNotice)
		return err
	}

	c.reporter.NotifySuccess(DeletedNotice)
	c.refresh(ctx)
	return nil
}

// refresh reloads the list, then the statistics. Both report their own
// failures.
func (c *Coordinator) refresh(ctx context.Context) {
	if err := c.list.Refresh(ctx); err != nil {
		c.logger.Debug("list refresh after mutation failed", zap.Error(err))
	}
	if err := c.stats.Refresh(ctx); err != nil {
		c.logger.Debug("stats refresh after mutation failed", zap.Error(err))
	}
}

func messageFor(err error, fallback string) string {
	if msg, ok := errors.ServerMessage(err); ok {
		return msg
	}
	return fallback
}
