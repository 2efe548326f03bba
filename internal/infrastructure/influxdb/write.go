package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementScan   = "inventory_scan"
	MeasurementLight  = "shelf_light"
	MeasurementMotion = "shelf_motion"
)

// RecordScan writes one identification attempt.
func (c *Client) RecordScan(deviceID, groupID, scanType string, found bool) {
	c.writePoint(scanPoint(deviceID, groupID, scanType, found, time.Now()))
}

// RecordLight writes one light command outcome. trigger is what caused the
// command, e.g. "scan" or "motion".
func (c *Client) RecordLight(deviceExternalID string, shelfPosition int, turnOn bool, trigger string, succeeded bool) {
	c.writePoint(lightPoint(deviceExternalID, shelfPosition, turnOn, trigger, succeeded, time.Now()))
}

// RecordMotion writes a motion report and what the controller did with it.
func (c *Client) RecordMotion(deviceExternalID string, shelfPosition int, outcome string) {
	c.writePoint(motionPoint(deviceExternalID, shelfPosition, outcome, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if c == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func scanPoint(deviceID, groupID, scanType string, found bool, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementScan,
		map[string]string{
			"device_id": deviceID,
			"group_id":  groupID,
			"scan_type": scanType,
		},
		map[string]interface{}{
			"found": found,
			"count": 1,
		},
		ts,
	)
}

func lightPoint(deviceExternalID string, shelfPosition int, turnOn bool, trigger string, succeeded bool, ts time.Time) *write.Point {
	action := "off"
	if turnOn {
		action = "on"
	}
	return write.NewPoint(
		MeasurementLight,
		map[string]string{
			"device":  deviceExternalID,
			"shelf":   strconv.Itoa(shelfPosition),
			"action":  action,
			"trigger": trigger,
		},
		map[string]interface{}{
			"succeeded": succeeded,
		},
		ts,
	)
}

func motionPoint(deviceExternalID string, shelfPosition int, outcome string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementMotion,
		map[string]string{
			"device":  deviceExternalID,
			"shelf":   strconv.Itoa(shelfPosition),
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)
}
