package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/venuetone/fleet-core/internal/fleet"
)

// WriteStatusSnapshot records one device status report in the device_status
// measurement.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Called on every poll that carries a status payload, so it must stay cheap
// and never fail the device request.
//
// Parameters:
//   - deviceID: registry identifier of the reporting device
//   - organizationID: owning organization
//   - venueID: assigned venue, or nil when unassigned
//   - status: the merged status snapshot held by the registry
func (c *Client) WriteStatusSnapshot(deviceID, organizationID string, venueID *string, status fleet.Status) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id":       deviceID,
		"organization_id": organizationID,
	}
	if venueID != nil {
		tags["venue_id"] = *venueID
	}

	fields := map[string]interface{}{
		"is_playing":   status.IsPlaying,
		"volume":       status.Volume,
		"current_time": status.CurrentTime,
		"duration":     status.Duration,
	}
	if status.TrackName != nil {
		fields["track_name"] = *status.TrackName
	}
	if status.Source != nil {
		fields["source"] = *status.Source
	}

	point := write.NewPoint("device_status", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteHeartbeat records a liveness tick for a device.
//
// Gives operators an uptime view per device without polling the registry.
func (c *Client) WriteHeartbeat(deviceID, organizationID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_heartbeat",
		map[string]string{
			"device_id":       deviceID,
			"organization_id": organizationID,
		},
		map[string]interface{}{
			"alive": true,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
