package fleet

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxNameLength bounds operator-supplied device labels.
const maxNameLength = 100

// DefaultOfflineThreshold is the staleness window used when none is
// configured. Devices poll every 2-3 seconds; 45 seconds tolerates a burst
// of missed polls without flapping the fleet dashboard.
const DefaultOfflineThreshold = 45 * time.Second

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Registry.
type Options struct {
	// PairingCodeLength is the length of generated pairing codes.
	// Zero means DefaultCodeLength.
	PairingCodeLength int

	// OfflineThreshold is how long a device may go without a heartbeat
	// before listings report it offline. Zero means DefaultOfflineThreshold.
	OfflineThreshold time.Duration
}

// deviceEntry is one device's record plus its own lock. Per-device locking
// keeps one appliance's 2-3 second poll cadence from queueing behind an
// unrelated device's operation.
type deviceEntry struct {
	mu sync.Mutex
	d  Device
}

// Registry is the authoritative in-memory table of fleet devices.
//
// It owns the pairing-code index, each device's command mailbox slot, and
// each device's heartbeat record; removing a device drops all three
// atomically, so no orphaned commands survive a removal.
//
// All public methods are thread-safe. Lock order is always the registry
// mutex before any entry mutex; no path acquires them the other way
// around.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry
	codes   map[string]string // normalised pairing code -> device ID, unpaired devices only

	gen          *CodeGenerator
	offlineAfter time.Duration
	now          func() time.Time
	logger       Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry(opts Options) *Registry {
	offlineAfter := opts.OfflineThreshold
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineThreshold
	}

	return &Registry{
		devices:      make(map[string]*deviceEntry),
		codes:        make(map[string]string),
		gen:          NewCodeGenerator(opts.PairingCodeLength),
		offlineAfter: offlineAfter,
		now:          time.Now,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock overrides the registry's time source. Tests use this to step
// through staleness windows deterministically.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// OfflineThreshold returns the configured staleness window.
func (r *Registry) OfflineThreshold() time.Duration {
	return r.offlineAfter
}

// Register creates a device in the unpaired state with a fresh pairing code.
//
// The returned device carries the code; listings will not show the device
// until it pairs, so the registration response is where the operator reads
// the code to hand to the installer.
func (r *Registry) Register(name, organizationID string) (*Device, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}
	if strings.TrimSpace(organizationID) == "" {
		return nil, ErrInvalidOrganization
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-roll until the code is unique among currently-unpaired devices.
	// With a 36^6 space and a handful of unpaired devices this loop almost
	// never iterates twice.
	var code string
	for {
		c, err := r.gen.NewCode()
		if err != nil {
			return nil, err
		}
		if _, taken := r.codes[c]; !taken {
			code = c
			break
		}
	}

	now := r.now()
	entry := &deviceEntry{
		d: Device{
			ID:              uuid.NewString(),
			Name:            name,
			OrganizationID:  organizationID,
			PairingCode:     code,
			LastHeartbeatAt: now,
			CreatedAt:       now,
		},
	}

	r.devices[entry.d.ID] = entry
	r.codes[code] = entry.d.ID

	r.logger.Info("device registered",
		"device_id", entry.d.ID,
		"organization_id", organizationID,
	)

	return r.snapshotLocked(entry), nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Get(id string) (*Device, error) {
	entry := r.lookup(id)
	if entry == nil {
		return nil, ErrDeviceNotFound
	}
	return r.snapshot(entry), nil
}

// ListByOrganization returns all paired devices owned by the organization,
// with staleness classified as of the read. Unpaired devices are invisible
// to listings; they exist only for pairing-code lookup until claimed.
func (r *Registry) ListByOrganization(organizationID string) []Device {
	return r.list(func(d *Device) bool {
		return d.Paired && d.OrganizationID == organizationID
	})
}

// ListAll returns every paired device in the registry, with staleness
// classified as of the read.
func (r *Registry) ListAll() []Device {
	return r.list(func(d *Device) bool {
		return d.Paired
	})
}

// Remove deletes a device along with its mailbox slot, heartbeat record,
// and any outstanding pairing code. Returns true if a device existed;
// removing an unknown ID is an idempotent no-op, not an error.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.devices[id]
	if !ok {
		return false
	}

	entry.mu.Lock()
	code := entry.d.PairingCode
	entry.mu.Unlock()

	delete(r.devices, id)
	if code != "" {
		delete(r.codes, code)
	}

	r.logger.Info("device removed", "device_id", id)
	return true
}

// PairByCode claims an unpaired device by its pairing code
// (case-insensitive). On a match the code is consumed atomically and the
// device becomes paired.
//
// Under concurrent attempts with the same code exactly one caller receives
// the device; every other caller gets ErrCodeNotFound, the same answer an
// unknown code produces.
func (r *Registry) PairByCode(code string) (*Device, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, ErrCodeNotFound
	}

	// The whole consume runs under the write lock: the code index and the
	// device record must flip together or a racing caller could pair twice.
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.codes[normalized]
	if !ok {
		return nil, ErrCodeNotFound
	}

	entry, ok := r.devices[id]
	if !ok {
		// Index points at a removed device; drop the dangling code.
		delete(r.codes, normalized)
		return nil, ErrCodeNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.d.Paired {
		return nil, ErrCodeNotFound
	}

	entry.d.Paired = true
	entry.d.PairingCode = ""
	entry.d.LastHeartbeatAt = r.now()
	delete(r.codes, normalized)

	r.logger.Info("device paired",
		"device_id", entry.d.ID,
		"organization_id", entry.d.OrganizationID,
	)

	cpy := entry.d.Clone()
	cpy.Online = true
	return cpy, nil
}

// Heartbeat records that the device just spoke to us.
// Unknown IDs are a benign no-op so a device removed server-side does not
// error its polling loop. The timestamp never moves backwards.
func (r *Registry) Heartbeat(id string) {
	entry := r.lookup(id)
	if entry == nil {
		return
	}

	now := r.now()

	entry.mu.Lock()
	if now.After(entry.d.LastHeartbeatAt) {
		entry.d.LastHeartbeatAt = now
	}
	entry.mu.Unlock()
}

// UpdateStatus merges a partial telemetry report over the documented
// defaults and stores it as the device's current status. Returns false
// (a no-op) if the device does not exist.
func (r *Registry) UpdateStatus(id string, u StatusUpdate) bool {
	entry := r.lookup(id)
	if entry == nil {
		return false
	}

	status := MergeStatus(u, r.now())

	entry.mu.Lock()
	entry.d.Status = &status
	entry.mu.Unlock()

	return true
}

// AssignVenue points the device at a venue. The device observes the change
// on its next poll; there is no push channel. Returns false if the device
// does not exist.
func (r *Registry) AssignVenue(id, venueID string) bool {
	entry := r.lookup(id)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	entry.d.VenueID = &venueID
	entry.mu.Unlock()

	r.logger.Info("device assigned", "device_id", id, "venue_id", venueID)
	return true
}

// UnassignVenue clears the device's venue. Returns false if the device
// does not exist.
func (r *Registry) UnassignVenue(id string) bool {
	entry := r.lookup(id)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	entry.d.VenueID = nil
	entry.mu.Unlock()

	r.logger.Info("device unassigned", "device_id", id)
	return true
}

// DeviceCount returns the number of devices in the registry, paired or not.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// lookup fetches the entry pointer for a device under the read lock.
// Callers take the entry's own mutex for any access to its record.
func (r *Registry) lookup(id string) *deviceEntry {
	r.mu.RLock()
	entry := r.devices[id]
	r.mu.RUnlock()
	return entry
}

// list snapshots every device matching the filter. This is the lazy
// staleness sweep: classification happens here, as of this read, and
// nothing is evicted.
func (r *Registry) list(match func(*Device) bool) []Device {
	now := r.now()

	r.mu.RLock()
	entries := make([]*deviceEntry, 0, len(r.devices))
	for _, entry := range r.devices {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	devices := make([]Device, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if match(&entry.d) {
			cpy := entry.d.Clone()
			cpy.Online = Classify(cpy.LastHeartbeatAt, now, r.offlineAfter)
			devices = append(devices, *cpy)
		}
		entry.mu.Unlock()
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].CreatedAt.Equal(devices[j].CreatedAt) {
			return devices[i].ID < devices[j].ID
		}
		return devices[i].CreatedAt.Before(devices[j].CreatedAt)
	})

	return devices
}

// snapshot copies an entry's record with staleness classified as of now.
func (r *Registry) snapshot(entry *deviceEntry) *Device {
	now := r.now()

	entry.mu.Lock()
	cpy := entry.d.Clone()
	entry.mu.Unlock()

	cpy.Online = Classify(cpy.LastHeartbeatAt, now, r.offlineAfter)
	return cpy
}

// snapshotLocked is snapshot for callers already holding the registry
// write lock with exclusive access to the fresh entry.
func (r *Registry) snapshotLocked(entry *deviceEntry) *Device {
	cpy := entry.d.Clone()
	cpy.Online = Classify(cpy.LastHeartbeatAt, r.now(), r.offlineAfter)
	return cpy
}
