// Package fleet provides the device fleet registry for the venue music
// platform.
//
// The registry is the authoritative catalogue of unattended playback
// appliances (set-top boxes). Devices have no persistent connection to the
// server: they poll over HTTP every 2-3 seconds. Everything the package does
// is shaped by that constraint.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                        Registry                             │
//	│                                                             │
//	│  ┌──────────────┐  ┌──────────────┐  ┌──────────────────┐  │
//	│  │   Pairing    │  │   Mailbox    │  │  Status / Venue  │  │
//	│  │ (pairing.go) │  │ (mailbox.go) │  │   (status.go)    │  │
//	│  │              │  │              │  │                  │  │
//	│  │ • code issue │  │ • single     │  │ • merge defaults │  │
//	│  │ • atomic     │  │   slot       │  │ • assignment     │  │
//	│  │   consume    │  │ • ack by ID  │  │ • classification │  │
//	│  └──────────────┘  └──────────────┘  └──────────────────┘  │
//	└────────────────────────────────────────────────────────────┘
//
// # Lifecycle
//
// A device is registered by an operator (unpaired, with a fresh pairing
// code), claimed by a physical appliance entering that code, kept live by
// heartbeats on every poll, reported offline when heartbeats stop, and
// removed explicitly. Staleness is a derived classification computed on
// listing reads; it never deletes anything. Going silent and coming back
// is normal behaviour for a box behind venue Wi-Fi.
//
// # Command delivery
//
// Each device has a single-slot command mailbox. Sending a command while one
// is pending replaces it (latest wins): commands describe the state the
// device should be in now, so delivering a superseded command would be
// wrong. Poll returns the pending command without clearing it; only an
// acknowledgment carrying the matching command ID clears the slot. A device
// that receives a response and crashes before acting simply sees the same
// command on its next poll.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. A registry-level RWMutex
// guards the device table and the pairing-code index; each device entry has
// its own mutex so one device's high-frequency poll never queues behind an
// unrelated device's operation. Lock order is always registry before entry.
package fleet
