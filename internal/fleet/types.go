package fleet

import "time"

// Device represents one playback appliance in the fleet.
type Device struct {
	// Identity
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`

	// Assignment. Nil until an operator assigns the device to a venue.
	VenueID *string `json:"venue_id"`

	// Onboarding. PairingCode is present only while the device is unpaired;
	// it is consumed exactly once when the appliance claims it.
	PairingCode string `json:"pairing_code,omitempty"`
	Paired      bool   `json:"paired"`

	// Liveness. Online is derived from LastHeartbeatAt at read time and is
	// only meaningful on snapshots returned by listing operations.
	Online          bool      `json:"online"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`

	// Telemetry and pending work. Status is nil until the device's first
	// report, so "never reported" and "reported volume 0" stay distinct.
	Status         *Status  `json:"status,omitempty"`
	PendingCommand *Command `json:"pending_command,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone creates an independent copy of the Device.
// Pointer and map fields are duplicated so modifications to the copy do not
// reach into the registry's record.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.VenueID != nil {
		v := *d.VenueID
		cpy.VenueID = &v
	}
	if d.Status != nil {
		st := d.Status.clone()
		cpy.Status = &st
	}
	cpy.PendingCommand = d.PendingCommand.Clone()

	return &cpy
}

// Command is a single instruction for a device, delivered through its
// mailbox slot. The payload is opaque to the server; the appliance firmware
// interprets it.
type Command struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Clone creates an independent copy of the Command.
func (c *Command) Clone() *Command {
	if c == nil {
		return nil
	}

	cpy := *c
	if c.Payload != nil {
		cpy.Payload = make(map[string]any, len(c.Payload))
		for k, v := range c.Payload {
			cpy.Payload[k] = v
		}
	}
	return &cpy
}

// Status is the last telemetry snapshot a device reported.
// String fields are nil when the device reported nothing for them.
type Status struct {
	IsPlaying   bool      `json:"is_playing"`
	TrackName   *string   `json:"track_name"`
	ArtistName  *string   `json:"artist_name"`
	AlbumImage  *string   `json:"album_image"`
	Genre       *string   `json:"genre"`
	Volume      int       `json:"volume"`
	CurrentTime float64   `json:"current_time"`
	Duration    float64   `json:"duration"`
	Source      *string   `json:"source"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s Status) clone() Status {
	cpy := s
	cpy.TrackName = cloneStringPtr(s.TrackName)
	cpy.ArtistName = cloneStringPtr(s.ArtistName)
	cpy.AlbumImage = cloneStringPtr(s.AlbumImage)
	cpy.Genre = cloneStringPtr(s.Genre)
	cpy.Source = cloneStringPtr(s.Source)
	return cpy
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StatusUpdate is a partial telemetry report from a device poll.
// Every field is optional; absent fields fall back to documented defaults
// when merged (see MergeStatus).
type StatusUpdate struct {
	IsPlaying   *bool    `json:"isPlaying"`
	TrackName   *string  `json:"trackName"`
	ArtistName  *string  `json:"artistName"`
	AlbumImage  *string  `json:"albumImage"`
	Genre       *string  `json:"genre"`
	Volume      *int     `json:"volume"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
	Source      *string  `json:"source"`
}

// Classify reports whether a device last heard from at lastHeartbeat is
// still considered online at now. The threshold is chosen to tolerate a
// couple of missed 2-3 second polls plus network jitter.
//
// Classification is a pure function computed on reads: there is no
// background eviction thread, and an offline device that resumes polling
// becomes online again on the next read.
func Classify(lastHeartbeat, now time.Time, threshold time.Duration) bool {
	return now.Sub(lastHeartbeat) <= threshold
}
