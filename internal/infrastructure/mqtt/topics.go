package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every inventory topic.
//
// Hierarchy:
//
//	inventory/system/status
//	inventory/device/{externalID}/command
//	inventory/device/{externalID}/ack
//	inventory/shelf-controller/{externalID}/shelves/{position}/motion
//	inventory/shelf-controller/{externalID}/shelves/{position}/status
const TopicPrefix = "inventory"

// Shelf-controller event names used as the final topic segment.
const (
	ShelfEventMotion = "motion"
	ShelfEventStatus = "status"
)

// Topics provides builders for inventory MQTT topics.
//
//	topic := mqtt.Topics{}.DeviceCommand("7c9e6679-7425-40de-944b-e07fc1f90ae7")
type Topics struct{}

// SystemStatus returns the retained online/offline status topic of the core.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceCommand returns the topic a device listens on for commands.
func (Topics) DeviceCommand(externalID string) string {
	return fmt.Sprintf("%s/device/%s/command", TopicPrefix, externalID)
}

// DeviceAck returns the topic a device acknowledges commands on.
func (Topics) DeviceAck(externalID string) string {
	return fmt.Sprintf("%s/device/%s/ack", TopicPrefix, externalID)
}

// AllDeviceAcks matches acknowledgements from every device.
func (Topics) AllDeviceAcks() string {
	return TopicPrefix + "/device/+/ack"
}

// ShelfEvent returns the topic a shelf controller reports an event on.
func (Topics) ShelfEvent(externalID string, position int, event string) string {
	return fmt.Sprintf("%s/shelf-controller/%s/shelves/%d/%s", TopicPrefix, externalID, position, event)
}

// AllShelfEvents matches one event type from every shelf of every controller.
func (Topics) AllShelfEvents(event string) string {
	return fmt.Sprintf("%s/shelf-controller/+/shelves/+/%s", TopicPrefix, event)
}

// ParseDeviceTopic extracts the device external id from a device topic.
func ParseDeviceTopic(topic string) (externalID, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "device" || parts[2] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// ParseShelfTopic extracts controller id, shelf position and event name
// from a shelf-controller topic.
func ParseShelfTopic(topic string) (externalID string, position int, event string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 6 || parts[0] != TopicPrefix || parts[1] != "shelf-controller" || parts[3] != "shelves" {
		return "", 0, "", false
	}
	if parts[2] == "" {
		return "", 0, "", false
	}
	position, err := strconv.Atoi(parts[4])
	if err != nil || position < 1 {
		return "", 0, "", false
	}
	return parts[2], position, parts[5], true
}
