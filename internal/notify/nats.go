package notify

import (
	"time"

	"jobtracker/client/internal/config"
	"jobtracker/client/internal/errors"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NATSReporter publishes every notice on a subject so other surfaces (a
// desktop notifier, a second terminal) can show them.
type NATSReporter struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATSReporter(logger *zap.Logger, config *config.Config) (*NATSReporter, error) {
	opts := []nats.Option{
		nats.Name("jobtracker-client"),
		nats.Timeout(config.NATSConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}

	return &NATSReporter{
		conn:    conn,
		subject: config.NoticeSubject,
		logger:  logger,
	}, nil
}

func (r *NATSReporter) publish(level Level, message string) {
	data, err := json.Marshal(Notice{Level: level, Message: message, At: time.Now().UTC()})
	if err != nil {
		r.logger.Error("failed to marshal notice", zap.Error(err))
		return
	}

	if err := r.conn.Publish(r.subject, data); err != nil {
		r.logger.Error("failed to publish notice",
			zap.String("subject", r.subject),
			zap.Error(err))
		return
	}

	r.logger.Debug("published notice",
		zap.String("subject", r.subject),
		zap.String("level", string(level)))
}

func (r *NATSReporter) NotifySuccess(message string) { r.publish(LevelSuccess, message) }

func (r *NATSReporter) NotifyError(message string) { r.publish(LevelError, message) }

func (r *NATSReporter) Alert(message string) { r.publish(LevelAlert, message) }

func (r *NATSReporter) Close() {
	if r.conn != nil {
		if err := r.conn.Drain(); err != nil {
			r.logger.Warn("failed to drain NATS connection", zap.Error(err))
			r.conn.Close()
		}
	}
}
