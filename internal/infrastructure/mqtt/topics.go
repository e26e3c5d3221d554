package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every Motion Bridge topic.
const TopicPrefix = "motionbridge"

// Command actions accepted on the command topics.
const (
	ActionTestRumble  = "test-rumble"
	ActionTestSpeaker = "test-speaker"
)

// Topics provides builders for Motion Bridge MQTT topics.
// Device indexes in topics are the 1-based indexes used on the wire.
//
//	topics := mqtt.Topics{}
//	captureTopic := topics.DeviceCapture(1)
//	// Returns: "motionbridge/device/1/capture"
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
//
// Example: motionbridge/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SystemNotification returns the topic carrying every status notification.
//
// Example: motionbridge/system/notification
func (Topics) SystemNotification() string {
	return TopicPrefix + "/system/notification"
}

// DeviceCapture returns the topic for completed capture events of a device.
//
// Example: motionbridge/device/1/capture
func (Topics) DeviceCapture(index int) string {
	return fmt.Sprintf("%s/device/%d/capture", TopicPrefix, index)
}

// Command returns the manual test command topic for a device.
//
// Example: motionbridge/command/1/test-rumble
func (Topics) Command(index int, action string) string {
	return fmt.Sprintf("%s/command/%d/%s", TopicPrefix, index, action)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: motionbridge/command/+/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+/+"
}

// ParseCommandTopic splits a command topic into its 1-based device index and
// action. It returns ErrInvalidTopic for anything that is not
// motionbridge/command/<index>/<action>.
func ParseCommandTopic(topic string) (index int, action string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "command" || parts[3] == "" {
		return 0, "", fmt.Errorf("%w: %q is not a command topic", ErrInvalidTopic, topic)
	}

	index, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, "", fmt.Errorf("%w: device index %q: %w", ErrInvalidTopic, parts[2], err)
	}

	return index, parts[3], nil
}
