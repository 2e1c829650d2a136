package fleet

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// testClock is a settable time source for stepping through staleness windows.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T) (*Registry, *testClock) {
	t.Helper()
	clock := newTestClock()
	r := NewRegistry(Options{OfflineThreshold: 45 * time.Second})
	r.SetClock(clock.Now)
	return r, clock
}

// registerPaired registers a device and pairs it immediately.
func registerPaired(t *testing.T, r *Registry, name, org string) *Device {
	t.Helper()
	dev, err := r.Register(name, org)
	if err != nil {
		t.Fatalf("Register(%q) error = %v", name, err)
	}
	paired, err := r.PairByCode(dev.PairingCode)
	if err != nil {
		t.Fatalf("PairByCode(%q) error = %v", dev.PairingCode, err)
	}
	return paired
}

func TestRegistry_Register(t *testing.T) {
	r, _ := newTestRegistry(t)

	t.Run("creates unpaired device with pairing code", func(t *testing.T) {
		dev, err := r.Register("Lobby-Box", "org-1")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		if dev.ID == "" {
			t.Error("ID was not generated")
		}
		if dev.Paired {
			t.Error("Paired = true, want false")
		}
		if len(dev.PairingCode) != DefaultCodeLength {
			t.Errorf("PairingCode length = %d, want %d", len(dev.PairingCode), DefaultCodeLength)
		}
		if dev.OrganizationID != "org-1" {
			t.Errorf("OrganizationID = %q, want %q", dev.OrganizationID, "org-1")
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := r.Register("", "org-1")
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Register() error = %v, want ErrInvalidName", err)
		}

		_, err = r.Register("   ", "org-1")
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Register(whitespace) error = %v, want ErrInvalidName", err)
		}
	})

	t.Run("rejects empty organization", func(t *testing.T) {
		_, err := r.Register("Bar-Box", "")
		if !errors.Is(err, ErrInvalidOrganization) {
			t.Errorf("Register() error = %v, want ErrInvalidOrganization", err)
		}
	})

	t.Run("pairing codes are unique among unpaired devices", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			dev, err := r.Register("Box", "org-codes")
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if seen[dev.PairingCode] {
				t.Fatalf("duplicate pairing code %q", dev.PairingCode)
			}
			seen[dev.PairingCode] = true
		}
	})
}

func TestRegistry_Get(t *testing.T) {
	r, _ := newTestRegistry(t)
	dev := registerPaired(t, r, "Get-Box", "org-1")

	t.Run("returns existing device", func(t *testing.T) {
		got, err := r.Get(dev.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name != "Get-Box" {
			t.Errorf("Name = %q, want %q", got.Name, "Get-Box")
		}
	})

	t.Run("returns ErrDeviceNotFound for unknown id", func(t *testing.T) {
		_, err := r.Get("nonexistent")
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("returned device is a copy", func(t *testing.T) {
		got, _ := r.Get(dev.ID)
		got.Name = "mutated"

		again, _ := r.Get(dev.ID)
		if again.Name != "Get-Box" {
			t.Error("mutation of returned device reached the registry record")
		}
	})
}

func TestRegistry_PairByCode(t *testing.T) {
	t.Run("pairs case-insensitively and consumes the code", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		dev, err := r.Register("Pair-Box", "org-1")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		paired, err := r.PairByCode(strings.ToLower(dev.PairingCode))
		if err != nil {
			t.Fatalf("PairByCode() error = %v", err)
		}

		if !paired.Paired {
			t.Error("Paired = false after pairing")
		}
		if paired.PairingCode != "" {
			t.Errorf("PairingCode = %q after pairing, want empty", paired.PairingCode)
		}
	})

	t.Run("second attempt with the same code fails", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		dev, _ := r.Register("Once-Box", "org-1")

		if _, err := r.PairByCode(dev.PairingCode); err != nil {
			t.Fatalf("first PairByCode() error = %v", err)
		}
		if _, err := r.PairByCode(dev.PairingCode); !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("second PairByCode() error = %v, want ErrCodeNotFound", err)
		}
	})

	t.Run("unknown code fails", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		if _, err := r.PairByCode("ZZZZZZ"); !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("PairByCode() error = %v, want ErrCodeNotFound", err)
		}
		if _, err := r.PairByCode(""); !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("PairByCode(empty) error = %v, want ErrCodeNotFound", err)
		}
	})

	t.Run("concurrent pairing resolves to exactly one winner", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		dev, _ := r.Register("Race-Box", "org-1")

		const attempts = 32
		results := make(chan error, attempts)
		var start sync.WaitGroup
		start.Add(1)

		for i := 0; i < attempts; i++ {
			go func() {
				start.Wait()
				_, err := r.PairByCode(dev.PairingCode)
				results <- err
			}()
		}
		start.Done()

		var wins, misses int
		for i := 0; i < attempts; i++ {
			switch err := <-results; {
			case err == nil:
				wins++
			case errors.Is(err, ErrCodeNotFound):
				misses++
			default:
				t.Fatalf("unexpected PairByCode() error = %v", err)
			}
		}

		if wins != 1 {
			t.Errorf("wins = %d, want exactly 1", wins)
		}
		if misses != attempts-1 {
			t.Errorf("misses = %d, want %d", misses, attempts-1)
		}
	})
}

func TestRegistry_Listings(t *testing.T) {
	r, _ := newTestRegistry(t)

	registerPaired(t, r, "Org1-A", "org-1")
	registerPaired(t, r, "Org1-B", "org-1")
	registerPaired(t, r, "Org2-A", "org-2")
	if _, err := r.Register("Unpaired", "org-1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("ListByOrganization filters by owner", func(t *testing.T) {
		devices := r.ListByOrganization("org-1")
		if len(devices) != 2 {
			t.Fatalf("len = %d, want 2", len(devices))
		}
		for _, d := range devices {
			if d.OrganizationID != "org-1" {
				t.Errorf("OrganizationID = %q, want org-1", d.OrganizationID)
			}
		}
	})

	t.Run("unpaired devices are invisible to listings", func(t *testing.T) {
		for _, d := range r.ListAll() {
			if !d.Paired {
				t.Errorf("listing returned unpaired device %q", d.Name)
			}
		}
		if len(r.ListAll()) != 3 {
			t.Errorf("ListAll() len = %d, want 3", len(r.ListAll()))
		}
	})

	t.Run("unknown organization lists empty", func(t *testing.T) {
		if devices := r.ListByOrganization("org-unknown"); len(devices) != 0 {
			t.Errorf("len = %d, want 0", len(devices))
		}
	})
}

func TestRegistry_Staleness(t *testing.T) {
	r, clock := newTestRegistry(t)
	dev := registerPaired(t, r, "Stale-Box", "org-1")
	threshold := r.OfflineThreshold()

	t.Run("online just inside the window", func(t *testing.T) {
		clock.Advance(threshold - time.Second)
		devices := r.ListByOrganization("org-1")
		if len(devices) != 1 || !devices[0].Online {
			t.Error("device inside the window classified offline")
		}
	})

	t.Run("offline just past the window", func(t *testing.T) {
		clock.Advance(2 * time.Second)
		devices := r.ListByOrganization("org-1")
		if len(devices) != 1 || devices[0].Online {
			t.Error("device past the window classified online")
		}
	})

	t.Run("staleness is reversible, not destructive", func(t *testing.T) {
		if _, err := r.Get(dev.ID); err != nil {
			t.Fatalf("stale device was evicted: %v", err)
		}

		r.Heartbeat(dev.ID)
		devices := r.ListByOrganization("org-1")
		if !devices[0].Online {
			t.Error("device not reclassified online after heartbeat")
		}
	})
}

func TestRegistry_Heartbeat(t *testing.T) {
	r, clock := newTestRegistry(t)
	dev := registerPaired(t, r, "Beat-Box", "org-1")

	t.Run("advances the timestamp", func(t *testing.T) {
		clock.Advance(10 * time.Second)
		r.Heartbeat(dev.ID)

		got, _ := r.Get(dev.ID)
		if !got.LastHeartbeatAt.Equal(clock.Now()) {
			t.Errorf("LastHeartbeatAt = %v, want %v", got.LastHeartbeatAt, clock.Now())
		}
	})

	t.Run("never moves backwards", func(t *testing.T) {
		before, _ := r.Get(dev.ID)

		clock.Advance(-time.Hour)
		r.Heartbeat(dev.ID)

		after, _ := r.Get(dev.ID)
		if after.LastHeartbeatAt.Before(before.LastHeartbeatAt) {
			t.Error("LastHeartbeatAt moved backwards")
		}
		clock.Advance(time.Hour)
	})

	t.Run("unknown id is a benign no-op", func(t *testing.T) {
		r.Heartbeat("nonexistent") // must not panic or error
	})
}

func TestRegistry_VenueAssignment(t *testing.T) {
	r, _ := newTestRegistry(t)
	dev := registerPaired(t, r, "Venue-Box", "org-1")

	t.Run("assign sets the venue", func(t *testing.T) {
		if !r.AssignVenue(dev.ID, "venue-9") {
			t.Fatal("AssignVenue() = false, want true")
		}

		_, venueID, ok := r.PollCommand(dev.ID)
		if !ok {
			t.Fatal("PollCommand() device missing")
		}
		if venueID == nil || *venueID != "venue-9" {
			t.Errorf("venueID = %v, want venue-9", venueID)
		}
	})

	t.Run("unassign clears the venue", func(t *testing.T) {
		if !r.UnassignVenue(dev.ID) {
			t.Fatal("UnassignVenue() = false, want true")
		}

		_, venueID, _ := r.PollCommand(dev.ID)
		if venueID != nil {
			t.Errorf("venueID = %v, want nil", venueID)
		}
	})

	t.Run("absent device returns false", func(t *testing.T) {
		if r.AssignVenue("nonexistent", "venue-9") {
			t.Error("AssignVenue(unknown) = true, want false")
		}
		if r.UnassignVenue("nonexistent") {
			t.Error("UnassignVenue(unknown) = true, want false")
		}
	})
}

func TestRegistry_Remove(t *testing.T) {
	r, _ := newTestRegistry(t)

	t.Run("removes device and all per-device state", func(t *testing.T) {
		dev := registerPaired(t, r, "Doomed-Box", "org-1")
		if _, err := r.SendCommand(dev.ID, "pause", nil); err != nil {
			t.Fatalf("SendCommand() error = %v", err)
		}

		if !r.Remove(dev.ID) {
			t.Fatal("Remove() = false, want true")
		}

		if _, err := r.Get(dev.ID); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("Get() after remove error = %v, want ErrDeviceNotFound", err)
		}

		// Subsequent device-side operations are benign no-ops.
		r.Heartbeat(dev.ID)
		if _, _, ok := r.PollCommand(dev.ID); ok {
			t.Error("PollCommand() after remove ok = true, want false")
		}
		if r.Acknowledge(dev.ID, "any") {
			t.Error("Acknowledge() after remove = true, want false")
		}
	})

	t.Run("removing an unpaired device frees its code", func(t *testing.T) {
		dev, _ := r.Register("Unclaimed", "org-1")
		code := dev.PairingCode

		if !r.Remove(dev.ID) {
			t.Fatal("Remove() = false, want true")
		}
		if _, err := r.PairByCode(code); !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("PairByCode(removed code) error = %v, want ErrCodeNotFound", err)
		}
	})

	t.Run("unknown id is idempotent", func(t *testing.T) {
		if r.Remove("nonexistent") {
			t.Error("Remove(unknown) = true, want false")
		}
	})
}

func TestRegistry_UpdateStatus(t *testing.T) {
	r, clock := newTestRegistry(t)
	dev := registerPaired(t, r, "Status-Box", "org-1")

	t.Run("nil before first report", func(t *testing.T) {
		got, err := r.Get(dev.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != nil {
			t.Errorf("Status = %+v, want nil before any report", got.Status)
		}
	})

	t.Run("applies merged status", func(t *testing.T) {
		playing := true
		track := "Night Drive"
		vol := 70
		clock.Advance(time.Second)

		if !r.UpdateStatus(dev.ID, StatusUpdate{IsPlaying: &playing, TrackName: &track, Volume: &vol}) {
			t.Fatal("UpdateStatus() = false, want true")
		}

		got, _ := r.Get(dev.ID)
		if got.Status == nil {
			t.Fatal("Status = nil after report")
		}
		if !got.Status.IsPlaying {
			t.Error("Status.IsPlaying = false, want true")
		}
		if got.Status.TrackName == nil || *got.Status.TrackName != "Night Drive" {
			t.Errorf("Status.TrackName = %v, want Night Drive", got.Status.TrackName)
		}
		if got.Status.Volume != 70 {
			t.Errorf("Status.Volume = %d, want 70", got.Status.Volume)
		}
		if !got.Status.UpdatedAt.Equal(clock.Now()) {
			t.Errorf("Status.UpdatedAt = %v, want %v", got.Status.UpdatedAt, clock.Now())
		}
	})

	t.Run("absent device is a no-op", func(t *testing.T) {
		if r.UpdateStatus("nonexistent", StatusUpdate{}) {
			t.Error("UpdateStatus(unknown) = true, want false")
		}
	})
}

// TestRegistry_ConcurrentMixedLoad exercises the lock layering: many devices
// polling at full speed while operators list, assign, and send commands.
// Run with -race.
func TestRegistry_ConcurrentMixedLoad(t *testing.T) {
	r := NewRegistry(Options{})
	var ids []string
	for i := 0; i < 8; i++ {
		dev, err := r.Register("Load-Box", "org-load")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if _, err := r.PairByCode(dev.PairingCode); err != nil {
			t.Fatalf("PairByCode() error = %v", err)
		}
		ids = append(ids, dev.ID)
	}

	const iterations = 200
	var wg sync.WaitGroup

	// Device pollers
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			playing := true
			for i := 0; i < iterations; i++ {
				r.Heartbeat(id)
				r.UpdateStatus(id, StatusUpdate{IsPlaying: &playing})
				if cmd, _, ok := r.PollCommand(id); ok && cmd != nil {
					r.Acknowledge(id, cmd.ID)
				}
			}
		}(id)
	}

	// Operator traffic
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			r.ListByOrganization("org-load")
			for _, id := range ids {
				_, _ = r.SendCommand(id, "setVolume", map[string]any{"volume": i % 100})
			}
			r.AssignVenue(ids[0], "venue-1")
			r.UnassignVenue(ids[0])
		}
	}()

	wg.Wait()

	if got := r.DeviceCount(); got != len(ids) {
		t.Errorf("DeviceCount() = %d, want %d", got, len(ids))
	}
}
