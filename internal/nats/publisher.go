// Package nats publishes captured packets onto a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// PacketMessage is the JSON body of one published packet.
type PacketMessage struct {
	DeviceID    string    `json:"device_id"`
	Offset      int64     `json:"offset"`
	SampleCount int       `json:"sample_count"`
	SampleRate  int       `json:"sample_rate"`
	Samples     []float32 `json:"samples"`
}

// Connection is the part of *nats.Conn the publisher needs.
type Connection interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// PacketPublisher is an AudioSinkDevice that publishes every packet of its
// stream as a PacketMessage.
type PacketPublisher struct {
	logger   *slog.Logger
	conn     Connection
	subject  string
	deviceID string

	ctx           context.Context
	ctxCancelFunc context.CancelFunc
}

// Connect to natsURL, retrying a few times, and create a publisher on subject.
func NewPacketPublisher(natsURL string, subject string, deviceID string, logger *slog.Logger) (*PacketPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var nc *nats.Conn
	var err error
	for i := 0; i < connectAttempts; i++ {
		nc, err = nats.Connect(natsURL, nats.Name("r6ebridge "+deviceID))
		if err == nil {
			break
		}
		logger.Warn("failed to connect to NATS",
			"url", natsURL,
			"attempt", i+1,
			"of", connectAttempts,
			"err", err,
		)
		if i < connectAttempts-1 {
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", connectAttempts, err)
	}

	logger.Info("connected to NATS", "url", natsURL)
	return NewPacketPublisherWithConnection(nc, subject, deviceID, logger), nil
}

// Create a publisher on an existing connection. The publisher closes conn
// when its stream ends.
func NewPacketPublisherWithConnection(conn Connection, subject string, deviceID string, logger *slog.Logger) *PacketPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PacketPublisher{
		logger: logger.With(
			"nats publisher uuid", uuid.New(),
			"subject", subject,
		),
		conn:          conn,
		subject:       subject,
		deviceID:      deviceID,
		ctx:           ctx,
		ctxCancelFunc: cancel,
	}
}

func (p *PacketPublisher) SetStream(sourceStream <-chan *signal.DataPacket) {
	go func() {
		defer p.close()
		for packet := range sourceStream {
			if err := p.publish(packet); err != nil {
				p.logger.Error("failed to publish packet", "err", err)
			}
		}
	}()
}

func (p *PacketPublisher) publish(packet *signal.DataPacket) error {
	msg := PacketMessage{
		DeviceID:    p.deviceID,
		SampleCount: packet.SampleCount,
		SampleRate:  packet.SampleRate(),
		Samples:     packet.Samples,
	}
	if packet.Domain != nil {
		msg.Offset = packet.Domain.Offset
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal packet: %w", err)
	}
	return p.conn.Publish(p.subject, data)
}

func (p *PacketPublisher) close() {
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("failed to flush NATS connection", "err", err)
	}
	p.conn.Close()
	p.logger.Debug("NATS connection closed")
	p.ctxCancelFunc()
}

func (p *PacketPublisher) WaitForClose() {
	<-p.ctx.Done()
}
