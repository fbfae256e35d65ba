package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/realtime"
)

// PublisherMetrics is satisfied by *metrics.Metrics.
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

type NATSPublisher struct {
	nc      conn
	prefix  string
	logger  *slog.Logger
	metrics PublisherMetrics
	verbose bool
}

// NewNATSPublisher connects to url. Subjects are rooted at prefix.
func NewNATSPublisher(url, prefix string, logger *slog.Logger, m PublisherMetrics, verbose bool) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "nats_publisher"))

	setConnected := func(connected bool) {
		if m != nil {
			m.NATSSetConnected(connected)
		}
	}

	nc, err := nats.Connect(url,
		nats.Name("ontime"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			setConnected(false)
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			setConnected(true)
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			setConnected(false)
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	setConnected(true)
	return newWithConn(nc, prefix, logger, m, verbose), nil
}

func newWithConn(nc conn, prefix string, logger *slog.Logger, m PublisherMetrics, verbose bool) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger, metrics: m, verbose: verbose}
}

func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		logging.LogError(p.logger, "Failed to drain nats connection", err)
	}
	p.nc.Close()
}

// PositionMessage is the JSON payload published for each vehicle.
type PositionMessage struct {
	VehicleID    string    `json:"vehicleId"`
	TripID       string    `json:"tripId"`
	RouteID      string    `json:"routeId"`
	DirectionID  int       `json:"directionId"`
	StopSequence int       `json:"stopSequence"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Timestamp    time.Time `json:"timestamp"`
	Simulated    bool      `json:"simulated"`
}

func newPositionMessage(v realtime.VehiclePosition) PositionMessage {
	msg := PositionMessage{
		VehicleID:    v.VehicleID,
		TripID:       v.TripID,
		RouteID:      v.RouteID,
		DirectionID:  v.DirectionID,
		StopSequence: v.StopSequence,
		Lat:          v.Lat,
		Lon:          v.Lon,
		Simulated:    v.Simulated,
	}
	if v.Timestamp > 0 {
		msg.Timestamp = time.Unix(v.Timestamp, 0).UTC()
	}
	return msg
}

// Subject returns the subject a vehicle is published on.
func (p *NATSPublisher) Subject(routeID, tripID string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(routeID), subjectToken(tripID))
}

// PublishPositions publishes every vehicle. It keeps going after a failed
// publish and returns the first error.
func (p *NATSPublisher) PublishPositions(ctx context.Context, vehicles []realtime.VehiclePosition) error {
	var firstErr error
	for _, v := range vehicles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.publish(v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *NATSPublisher) publish(v realtime.VehiclePosition) error {
	subject := p.Subject(v.RouteID, v.TripID)
	b, err := json.Marshal(newPositionMessage(v))
	if err != nil {
		return err
	}
	if p.verbose {
		p.logger.Debug("nats publish", slog.String("subject", subject))
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// tokens may not contain whitespace, wildcards or separators
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
