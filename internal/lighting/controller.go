package lighting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/mqtt"
)

// DefaultCommandTimeout bounds the wait for a device acknowledgement.
const DefaultCommandTimeout = 30 * time.Second

// MQTTClient is the subset of the MQTT client the controller needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Controller.
type Config struct {
	// CommandTimeout is how long SetLight waits for an ack.
	CommandTimeout time.Duration

	// QoS for commands and the ack subscription.
	QoS byte
}

type pendingCommand struct {
	deviceID string
	ack      chan AckMessage
}

// Controller sends light commands to shelf controllers over MQTT and waits
// for the matching acknowledgement.
//
// Acks are correlated by request id through a single wildcard subscription
// established by Start. All methods are safe for concurrent use.
type Controller struct {
	client MQTTClient
	cfg    Config
	topics mqtt.Topics
	logger Logger

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	pending map[string]*pendingCommand
	started bool
	stopped chan struct{}
}

// NewController creates a light controller. Call Start before SetLight.
func NewController(client MQTTClient, cfg Config) *Controller {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	return &Controller{
		client:  client,
		cfg:     cfg,
		logger:  noopLogger{},
		now:     time.Now,
		newID:   uuid.NewString,
		pending: make(map[string]*pendingCommand),
		stopped: make(chan struct{}),
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// Start subscribes to acknowledgements from every device. Calling Start
// more than once is a no-op.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.client.Subscribe(c.topics.AllDeviceAcks(), c.cfg.QoS, c.handleAck); err != nil {
		return fmt.Errorf("subscribing to device acks: %w", err)
	}
	c.started = true
	c.logger.Info("light controller started", "timeout", c.cfg.CommandTimeout)
	return nil
}

// Stop unsubscribes and fails every pending command with ErrStopped.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.stopped)
	c.stopped = make(chan struct{})
	pending := len(c.pending)
	c.pending = make(map[string]*pendingCommand)
	c.mu.Unlock()

	if pending > 0 {
		c.logger.Warn("light controller stopped with pending commands", "count", pending)
	}
	if err := c.client.Unsubscribe(c.topics.AllDeviceAcks()); err != nil {
		return fmt.Errorf("unsubscribing from device acks: %w", err)
	}
	return nil
}

// PendingCount returns the number of commands awaiting an ack.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SetLight turns the light of the shelf at position on the device with
// the given external id on or off. It returns nil only after the device
// acknowledged with status 200; any other outcome is a *DeviceError.
func (c *Controller) SetLight(ctx context.Context, deviceExternalID string, position int, turnOn bool) error {
	cmd := CommandMessage{
		RequestID: c.newID(),
		Method:    methodFor(turnOn),
		Payload:   CommandPayload{ShelfPosition: position},
		Timestamp: c.now().UTC(),
	}
	fail := func(status int, cause error) error {
		return &DeviceError{
			DeviceID:  deviceExternalID,
			Method:    cmd.Method,
			RequestID: cmd.RequestID,
			Status:    status,
			Cause:     cause,
		}
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fail(0, fmt.Errorf("encoding command: %w", err))
	}

	pc := &pendingCommand{deviceID: deviceExternalID, ack: make(chan AckMessage, 1)}
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return fail(0, ErrStopped)
	}
	c.pending[cmd.RequestID] = pc
	stopped := c.stopped
	c.mu.Unlock()
	defer c.forget(cmd.RequestID)

	if err := c.client.Publish(c.topics.DeviceCommand(deviceExternalID), payload, c.cfg.QoS, false); err != nil {
		return fail(0, err)
	}
	c.logger.Debug("light command sent",
		"device", deviceExternalID,
		"method", cmd.Method,
		"shelf_position", position,
		"request_id", cmd.RequestID,
	)

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case ack := <-pc.ack:
		if ack.Status != StatusOK {
			c.logger.Warn("light command rejected",
				"device", deviceExternalID,
				"request_id", cmd.RequestID,
				"status", ack.Status,
				"message", ack.Message,
			)
			return fail(ack.Status, nil)
		}
		return nil
	case <-timer.C:
		return fail(0, ErrAckTimeout)
	case <-stopped:
		return fail(0, ErrStopped)
	case <-ctx.Done():
		return fail(0, ctx.Err())
	}
}

func (c *Controller) forget(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// handleAck delivers an acknowledgement to the command waiting for it.
// Unknown or late acks are dropped.
func (c *Controller) handleAck(topic string, payload []byte) error {
	deviceID, kind, ok := mqtt.ParseDeviceTopic(topic)
	if !ok || kind != "ack" {
		return fmt.Errorf("unexpected ack topic %q", topic)
	}

	var ack AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack from %s: %w", deviceID, err)
	}

	c.mu.Lock()
	pc, found := c.pending[ack.RequestID]
	c.mu.Unlock()
	if !found {
		c.logger.Debug("dropping unmatched ack", "device", deviceID, "request_id", ack.RequestID)
		return nil
	}
	if pc.deviceID != deviceID {
		c.logger.Warn("ack from unexpected device",
			"request_id", ack.RequestID,
			"want_device", pc.deviceID,
			"got_device", deviceID,
		)
		return nil
	}

	select {
	case pc.ack <- ack:
	default:
		// duplicate ack
	}
	return nil
}
