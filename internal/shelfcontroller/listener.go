package shelfcontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/mqtt"
)

// defaultHandleTimeout bounds one motion or status report. Motion may wait for a
// light acknowledgement, so it must exceed the light command timeout.
const defaultHandleTimeout = 45 * time.Second

// Subscriber is the subset of the MQTT client the listener needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// StatusReport is the payload of a shelf status topic.
type StatusReport struct {
	IsLitUp *bool `json:"is_lit_up"`
}

// Listener feeds shelf-controller telemetry published over MQTT into a
// Controller:
//
//	inventory/shelf-controller/{externalID}/shelves/{position}/motion
//	inventory/shelf-controller/{externalID}/shelves/{position}/status
type Listener struct {
	ctrl    *Controller
	client  Subscriber
	qos     byte
	timeout time.Duration
	topics  mqtt.Topics

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener creates a listener. handleTimeout of zero uses a default
// above the light command timeout.
func NewListener(ctrl *Controller, client Subscriber, qos byte, handleTimeout time.Duration) *Listener {
	if handleTimeout <= 0 {
		handleTimeout = defaultHandleTimeout
	}
	return &Listener{ctrl: ctrl, client: client, qos: qos, timeout: handleTimeout}
}

// Start subscribes to motion and status reports from every controller.
// Handlers run until Stop or until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	if err := l.client.Subscribe(l.topics.AllShelfEvents(mqtt.ShelfEventMotion), l.qos, l.handle); err != nil {
		return fmt.Errorf("subscribing to shelf motion: %w", err)
	}
	if err := l.client.Subscribe(l.topics.AllShelfEvents(mqtt.ShelfEventStatus), l.qos, l.handle); err != nil {
		return fmt.Errorf("subscribing to shelf status: %w", err)
	}
	l.ctrl.logger.Info("shelf controller listener started")
	return nil
}

// Stop unsubscribes, cancels in-flight handlers and waits for them.
func (l *Listener) Stop() error {
	var firstErr error
	for _, event := range []string{mqtt.ShelfEventMotion, mqtt.ShelfEventStatus} {
		if err := l.client.Unsubscribe(l.topics.AllShelfEvents(event)); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()
	l.wg.Wait()
	return firstErr
}

func (l *Listener) handle(topic string, payload []byte) error {
	deviceID, position, event, ok := mqtt.ParseShelfTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected shelf topic %q", topic)
	}

	l.mu.Lock()
	base := l.ctx
	if base == nil || base.Err() != nil {
		l.mu.Unlock()
		return nil
	}
	l.wg.Add(1)
	l.mu.Unlock()
	defer l.wg.Done()

	ctx, cancel := context.WithTimeout(base, l.timeout)
	defer cancel()

	switch event {
	case mqtt.ShelfEventMotion:
		return l.ctrl.HandleMotion(ctx, deviceID, position)
	case mqtt.ShelfEventStatus:
		var report StatusReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return fmt.Errorf("decoding status from %s: %w", deviceID, err)
		}
		if report.IsLitUp == nil {
			return fmt.Errorf("status from %s is missing is_lit_up", deviceID)
		}
		return l.ctrl.SetShelfLightStatus(ctx, deviceID, position, *report.IsLitUp)
	default:
		return fmt.Errorf("unknown shelf event %q", event)
	}
}
