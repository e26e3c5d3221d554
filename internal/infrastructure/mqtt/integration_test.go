//go:build integration

package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/motion-bridge/internal/notify"
)

// Integration tests against a running broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestIntegration_Connect(t *testing.T) {
	client := connectTest(t, "motionbridge-int-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	sub := connectTest(t, "motionbridge-int-sub")
	pub := connectTest(t, "motionbridge-int-pub")

	type command struct {
		index  int
		action string
	}
	received := make(chan command, 1)

	err := sub.Subscribe(Topics{}.AllCommands(), 1, func(topic string, _ []byte) error {
		index, action, err := ParseCommandTopic(topic)
		if err != nil {
			return err
		}
		received <- command{index, action}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", sub.SubscriptionCount())
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(Topics{}.Command(2, ActionTestSpeaker), nil, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got.index != 2 || got.action != ActionTestSpeaker {
			t.Errorf("received %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for command")
	}
}

func TestIntegration_NotificationConsumer(t *testing.T) {
	sub := connectTest(t, "motionbridge-int-notify-sub")
	pub := connectTest(t, "motionbridge-int-notify-pub")

	received := make(chan notificationPayload, 1)
	err := sub.Subscribe(Topics{}.SystemNotification(), 1, func(_ string, payload []byte) error {
		var n notificationPayload
		if err := json.Unmarshal(payload, &n); err != nil {
			return err
		}
		received <- n
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	NewNotificationConsumer(pub, pub.QoS(), nil).Consume(notify.Notification{
		Message: "User connected!",
		Time:    time.Now(),
	})

	select {
	case n := <-received:
		if n.Message != "User connected!" {
			t.Errorf("Message = %q", n.Message)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}
