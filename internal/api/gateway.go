package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"jobtracker/client/internal/config"
	"jobtracker/client/internal/errors"
	"jobtracker/client/internal/models"
	"jobtracker/client/internal/notify"
	"jobtracker/client/internal/session"
	"jobtracker/client/internal/telemetry"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var (
	tracer = telemetry.GetTracer("jobtracker/client/api")
	json   = jsoniter.ConfigCompatibleWithStandardLibrary
)

const (
	maxErrorBody = 64 << 10

	ForbiddenNotice = "You do not have permission to perform this action."
)

// SessionProvider is the part of the session store the gateway needs.
type SessionProvider interface {
	Snapshot() (session.Session, uint64)
	InvalidateIf(ctx context.Context, generation uint64) (bool, error)
}

// Navigator moves the user to another screen. The gateway only ever uses it
// to send the user to the login screen.
type Navigator interface {
	Redirect(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) {
	f(path)
}

// Gateway is the single path every request to the tracker API takes.
type Gateway struct {
	client    *http.Client
	logger    *zap.Logger
	baseURL   string
	loginPath string
	sessions  SessionProvider
	reporter  notify.Reporter
	navigator Navigator
}

func NewGateway(logger *zap.Logger, config *config.Config, sessions SessionProvider, reporter notify.Reporter, navigator Navigator) *Gateway {
	return &Gateway{
		client: &http.Client{
			Timeout: config.APITimeout,
		},
		logger:    logger,
		baseURL:   config.APIBaseURL,
		loginPath: config.LoginPath,
		sessions:  sessions,
		reporter:  reporter,
		navigator: navigator,
	}
}

// Do sends one request and decodes a successful JSON response into out, which
// may be nil. The session is read when the request is built, never cached.
func (g *Gateway) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	ctx, span := tracer.Start(ctx, method+" "+path)
	defer span.End()

	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	span.SetAttributes(
		telemetry.String("http.method", method),
		telemetry.String("http.url", target),
	)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return errors.Internal("encoding request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("creating request", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	sess, generation := g.sessions.Snapshot()
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	telemetry.Inject(ctx, propagation.HeaderCarrier(req.Header))

	logger := g.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
	logger.Debug("sending request")

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to execute request", zap.Error(err))
		return errors.Unavailable("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(telemetry.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		derr := g.failure(resp)
		span.RecordError(derr)
		logger.Warn("request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("server_message", derr.ServerMessage))

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			if sess.Token != "" {
				g.expire(ctx, generation)
			}
		case http.StatusForbidden:
			g.reporter.Alert(ForbiddenNotice)
		}
		return derr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to read response body", zap.Error(err))
		return errors.Unavailable("reading response", err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		span.RecordError(err)
		logger.Error("failed to decode response", zap.Error(err))
		return errors.Internal("decoding response", err)
	}

	logger.Debug("request completed", zap.Int("status_code", resp.StatusCode))
	return nil
}

// failure turns a non-2xx response into a DomainError, keeping whatever
// message the server put in the body.
func (g *Gateway) failure(resp *http.Response) *errors.DomainError {
	var body models.ErrorResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		if jerr := json.Unmarshal(data, &body); jerr != nil {
			g.logger.Debug("error response is not JSON",
				zap.Int("status_code", resp.StatusCode),
				zap.Error(jerr))
		}
	}

	derr := errors.FromStatus(resp.StatusCode, body.Message)
	derr.Fields = body.ValidationErrors
	return derr
}

// expire ends the session the failed request was sent with. Only the caller
// that actually clears it redirects, so a burst of 401s from one expired
// session produces one redirect. Requests sent without a token have no
// session to end and never get here.
func (g *Gateway) expire(ctx context.Context, generation uint64) {
	cleared, err := g.sessions.InvalidateIf(context.WithoutCancel(ctx), generation)
	if err != nil {
		g.logger.Error("failed to clear expired session", zap.Error(err))
	}
	if !cleared {
		return
	}
	g.logger.Info("session expired, redirecting to login", zap.String("path", g.loginPath))
	g.navigator.Redirect(g.loginPath)
}

func joinPath(parts ...interface{}) string {
	p := ""
	for _, part := range parts {
		p += "/" + url.PathEscape(fmt.Sprint(part))
	}
	return p
}
