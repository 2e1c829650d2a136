package fleet

import (
	"strings"

	"github.com/google/uuid"
)

// The command mailbox is a single slot per device, not a queue. Commands
// describe the state the appliance should be in right now (volume, play
// state, venue hint), so a newer command supersedes an unacknowledged older
// one rather than queueing behind it.

// SendCommand places a command in the device's mailbox slot, replacing any
// pending command (latest wins). Returns ErrDeviceNotFound if the device
// does not exist and ErrInvalidCommand if the type is blank.
func (r *Registry) SendCommand(deviceID, cmdType string, payload map[string]any) (*Command, error) {
	if strings.TrimSpace(cmdType) == "" {
		return nil, ErrInvalidCommand
	}

	entry := r.lookup(deviceID)
	if entry == nil {
		return nil, ErrDeviceNotFound
	}

	cmd := &Command{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Type:      cmdType,
		Payload:   payload,
		CreatedAt: r.now(),
	}

	entry.mu.Lock()
	superseded := entry.d.PendingCommand
	entry.d.PendingCommand = cmd
	entry.mu.Unlock()

	if superseded != nil {
		r.logger.Debug("pending command superseded",
			"device_id", deviceID,
			"old_command_id", superseded.ID,
			"new_command_id", cmd.ID,
		)
	}

	return cmd.Clone(), nil
}

// PollCommand returns the device's pending command without clearing it,
// along with the current venue assignment. Repeated polls before an
// acknowledgment see the same command: delivery is at-least-once, robust to
// an appliance that receives the response but crashes before acting.
//
// The boolean reports whether the device exists so the caller can
// distinguish "no command" from "no such device".
func (r *Registry) PollCommand(deviceID string) (cmd *Command, venueID *string, ok bool) {
	entry := r.lookup(deviceID)
	if entry == nil {
		return nil, nil, false
	}

	entry.mu.Lock()
	cmd = entry.d.PendingCommand.Clone()
	venueID = cloneStringPtr(entry.d.VenueID)
	entry.mu.Unlock()

	return cmd, venueID, true
}

// Acknowledge clears the mailbox slot, but only when commandID matches the
// currently pending command. A stale or duplicate ack returns false and
// changes nothing: the ID match is what makes the mailbox safe against a
// device acking command A after the operator already sent command B.
func (r *Registry) Acknowledge(deviceID, commandID string) bool {
	entry := r.lookup(deviceID)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	pending := entry.d.PendingCommand
	if pending == nil || pending.ID != commandID {
		return false
	}

	entry.d.PendingCommand = nil
	return true
}
