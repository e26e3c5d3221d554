package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/motion-bridge/internal/gesture"
	"github.com/nerrad567/motion-bridge/internal/notify"
)

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// notificationPayload is the document published on the notification topic.
type notificationPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NotificationConsumer forwards status notifications to
// motionbridge/system/notification. It is a notify.Consumer.
type NotificationConsumer struct {
	pub    Publisher
	qos    byte
	logger Logger
}

// NewNotificationConsumer creates a consumer publishing with qos.
func NewNotificationConsumer(pub Publisher, qos byte, logger Logger) *NotificationConsumer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &NotificationConsumer{pub: pub, qos: qos, logger: logger}
}

// Consume publishes n. Publish failures are logged; the queue dispatcher
// must not stall on a broker outage.
func (c *NotificationConsumer) Consume(n notify.Notification) {
	payload, err := json.Marshal(notificationPayload{
		Message:   n.Message,
		Timestamp: n.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	if err := c.pub.Publish(Topics{}.SystemNotification(), payload, c.qos, false); err != nil {
		c.logger.Warn("publishing notification failed", "message", n.Message, "error", err)
	}
}

// EventPublisher publishes capture results to
// motionbridge/device/<index>/capture.
type EventPublisher struct {
	pub Publisher
	qos byte
}

// NewEventPublisher creates a capture event publisher.
func NewEventPublisher(pub Publisher, qos byte) *EventPublisher {
	return &EventPublisher{pub: pub, qos: qos}
}

// PublishCapture publishes the event form of result.
func (p *EventPublisher) PublishCapture(result gesture.Result) error {
	ev := result.Event()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding capture event: %w", err)
	}
	return p.pub.Publish(Topics{}.DeviceCapture(ev.Index), payload, p.qos, false)
}

var (
	_ notify.Consumer = (*NotificationConsumer)(nil)
	_ Publisher       = (*Client)(nil)
)
