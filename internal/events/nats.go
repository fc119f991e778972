package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/pkg/logger"
)

const (
	// StreamName is the JetStream stream carrying lead signals.
	StreamName = "LEADS"

	// SubjectPrefix is the prefix for all lead subjects.
	SubjectPrefix = "leads"
)

// NATSPublisher publishes advisory events to a JetStream stream so the lead
// follow-up collaborator can consume them at its own pace.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// ConnectNATS connects to the NATS server and ensures the lead stream exists.
func ConnectNATS(ctx context.Context, url string, log *logger.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &NATSPublisher{conn: nc, js: js, logger: log}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *NATSPublisher) ensureStream(ctx context.Context) error {
	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Lead eligibility signals from the mortgage advisor",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// LeadEligible publishes the eligibility signal.
func (p *NATSPublisher) LeadEligible(ctx context.Context, evt model.LeadEligibleEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.eligible.%s", SubjectPrefix, evt.SessionID)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
