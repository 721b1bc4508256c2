// Package dashboard keeps the locally held view of the user's applications in
// step with the server: one paginated, filtered page of records, the aggregate
// statistics, and the edit surface that creates, updates and deletes records.
package dashboard

import (
	"context"
	stderrors "errors"
	"sync"

	"jobtracker/client/internal/models"
	"jobtracker/client/internal/notify"
	"jobtracker/client/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobtracker/client/dashboard")

const LoadFailedNotice = "Failed to load applications"

var (
	// ErrSuperseded is returned by a fetch whose response arrived after a
	// newer fetch was issued. Its result was discarded.
	ErrSuperseded     = stderrors.New("superseded by a newer request")
	ErrPageOutOfRange = stderrors.New("page out of range")

	errNoop = stderrors.New("no-op")
)

type RecordLister interface {
	List(ctx context.Context, query models.ViewQuery) (*models.ListPage, error)
}

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// View is what the presentation layer renders. Page is the last page that
// loaded successfully; it survives a failed fetch. PageQuery is the query Page
// answered, which lags Query while a fetch is in flight.
type View struct {
	State     State
	Query     models.ViewQuery
	Page      *models.ListPage
	PageQuery models.ViewQuery
	Err       error
}

func (v View) Records() []models.ApplicationRecord {
	if v.Page == nil {
		return nil
	}
	return v.Page.Content
}

func (v View) TotalPages() int {
	if v.Page == nil {
		return 0
	}
	return v.Page.TotalPages
}

// HasNext is false until a page for the current filters has loaded.
func (v View) HasNext() bool {
	return v.Page != nil && sameFilters(v.PageQuery, v.Query) && v.Query.Page < v.TotalPages()-1
}

func (v View) HasPrev() bool {
	return v.Query.Page > 0
}

func (v View) ShowPagination() bool {
	return v.TotalPages() > 1
}

// DisplayPage is the 1-based page number shown to the user.
func (v View) DisplayPage() int {
	return v.Query.Page + 1
}

// Controller owns the view query and the page on screen. Every trigger
// updates the query and issues one fetch; only the response of the latest
// fetch is ever applied.
type Controller struct {
	lister   RecordLister
	reporter notify.Reporter
	logger   *zap.Logger

	mu         sync.Mutex
	query      models.ViewQuery
	state      State
	page       *models.ListPage
	pageQuery  models.ViewQuery
	err        error
	generation uint64
	listeners  []func(View)
}

func NewController(logger *zap.Logger, lister RecordLister, reporter notify.Reporter) *Controller {
	return &Controller{
		lister:   lister,
		reporter: reporter,
		logger:   logger,
		query:    models.DefaultViewQuery(),
	}
}

// OnChange registers fn to receive every new View. Listeners run on the
// goroutine that caused the change, outside the controller's lock.
func (c *Controller) OnChange(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		State:     c.state,
		Query:     c.query,
		PageQuery: c.pageQuery,
		Err:       c.err,
	}
	if c.page != nil {
		p := *c.page
		p.Content = append([]models.ApplicationRecord(nil), c.page.Content...)
		v.Page = &p
	}
	return v
}

// Refresh refetches the current query.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		return q, nil
	})
}

// SetPage moves to page. Pages outside the range known for the current
// filters are rejected without a request; page 0 always exists.
func (c *Controller) SetPage(ctx context.Context, page int) error {
	return c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		if page < 0 || (page > 0 && page >= c.totalPagesLocked(q)) {
			return q, ErrPageOutOfRange
		}
		return q.WithPage(page), nil
	})
}

// Next is a no-op on the last page, and while the page count for the current
// filters is still unknown.
func (c *Controller) Next(ctx context.Context) error {
	err := c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		if q.Page >= c.totalPagesLocked(q)-1 {
			return q, errNoop
		}
		return q.WithPage(q.Page + 1), nil
	})
	if err == errNoop {
		return nil
	}
	return err
}

// Prev is a no-op on the first page.
func (c *Controller) Prev(ctx context.Context) error {
	err := c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		if q.Page <= 0 {
			return q, errNoop
		}
		return q.WithPage(q.Page - 1), nil
	})
	if err == errNoop {
		return nil
	}
	return err
}

// totalPagesLocked is the page count of the loaded page when it answered the
// same filters as q, zero otherwise.
func (c *Controller) totalPagesLocked(q models.ViewQuery) int {
	if c.page == nil || !sameFilters(c.pageQuery, q) {
		return 0
	}
	return c.page.TotalPages
}

func sameFilters(a, b models.ViewQuery) bool {
	a.Page, b.Page = 0, 0
	return a == b
}

// SetKeyword changes the search keyword and goes back to the first page.
func (c *Controller) SetKeyword(ctx context.Context, keyword string) error {
	return c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		return q.WithKeyword(keyword), nil
	})
}

// SetStatus changes the status filter and goes back to the first page. The
// empty status shows every status.
func (c *Controller) SetStatus(ctx context.Context, status models.Status) error {
	return c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		return q.WithStatus(status), nil
	})
}

// ApplyFilters sets keyword and status together with a single fetch.
func (c *Controller) ApplyFilters(ctx context.Context, keyword string, status models.Status) error {
	return c.fetch(ctx, func(q models.ViewQuery) (models.ViewQuery, error) {
		return q.WithKeyword(keyword).WithStatus(status), nil
	})
}

// fetch derives the next query from the current one under the lock, then
// lists it without holding the lock. The response is applied only if no
// other fetch started in the meantime.
func (c *Controller) fetch(ctx context.Context, next func(models.ViewQuery) (models.ViewQuery, error)) error {
	c.mu.Lock()
	query, err := next(c.query)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.generation++
	generation := c.generation
	c.query = query
	c.state = StateLoading
	loading := c.viewLocked()
	c.mu.Unlock()
	c.emit(loading)

	ctx, span := tracer.Start(ctx, "Controller.fetch")
	defer span.End()
	span.SetAttributes(
		telemetry.Int("query.page", query.Page),
		telemetry.Int64("controller.generation", int64(generation)),
	)

	page, err := c.lister.List(ctx, query)

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded page",
			zap.Uint64("generation", generation),
			zap.Int("page", query.Page))
		return ErrSuperseded
	}
	if err != nil {
		c.state = StateError
		c.err = err
	} else {
		c.state = StateLoaded
		c.err = nil
		c.page = page
		c.pageQuery = query
	}
	view := c.viewLocked()
	c.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		c.logger.Warn("failed to load applications",
			zap.Int("page", query.Page),
			zap.String("keyword", query.Keyword),
			zap.String("status", string(query.Status)),
			zap.Error(err))
		c.reporter.NotifyError(LoadFailedNotice)
	}
	c.emit(view)
	return err
}

func (c *Controller) emit(v View) {
	c.mu.Lock()
	listeners := append(([]func(View))(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
