package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/venuetone/fleet-core/internal/audit"
	"github.com/venuetone/fleet-core/internal/fleet"
)

// deviceLinkRequest is the single action-discriminated body devices POST to
// /device-link. Only the fields for the chosen action are read.
type deviceLinkRequest struct {
	Action      string              `json:"action"`
	PairingCode string              `json:"pairingCode,omitempty"`
	DeviceID    string              `json:"deviceId,omitempty"`
	CommandID   string              `json:"commandId,omitempty"`
	Status      *fleet.StatusUpdate `json:"status,omitempty"`
}

// handleDeviceLink is the device-facing polling endpoint.
//
// Appliances only ever make outbound POSTs here, so the contract works
// through NAT and strict venue firewalls. The action field selects the
// operation:
//
//   - pair: consume a pairing code, claiming the device record
//   - poll: heartbeat, optional status report, fetch the pending command
//   - ack: confirm delivery of a specific command
func (s *Server) handleDeviceLink(w http.ResponseWriter, r *http.Request) {
	var req deviceLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch req.Action {
	case "pair":
		s.handlePair(w, r, req)
	case "poll":
		s.handlePoll(w, req)
	case "ack":
		s.handleAck(w, req)
	default:
		writeValidationError(w, "action must be pair, poll or ack")
	}
}

// handlePair consumes a pairing code and claims the device record.
// The lookup is case-insensitive; exactly one caller can win a given code.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request, req deviceLinkRequest) {
	if req.PairingCode == "" {
		writeValidationError(w, "pairingCode is required for pair")
		return
	}

	device, err := s.registry.PairByCode(req.PairingCode)
	if err != nil {
		if errors.Is(err, fleet.ErrCodeNotFound) {
			writeNotFound(w, "pairing code not recognised")
			return
		}
		s.logger.Error("pairing failed", "error", err)
		writeInternalError(w, "pairing failed")
		return
	}

	s.logger.Info("device paired",
		"device_id", device.ID,
		"organization_id", device.OrganizationID,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	s.auditLog(audit.ActionPair, device.ID, "device", audit.SourceDeviceLink, map[string]any{
		"name": device.Name,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId": device.ID,
		"venueId":  device.VenueID,
		"name":     device.Name,
		"paired":   true,
	})
}

// handlePoll refreshes the device heartbeat, applies any status report, and
// returns the pending command without clearing it. The command stays in the
// mailbox until the device acks it, so a response lost in transit is simply
// delivered again on the next poll.
//
// An unknown deviceId is not an error: a device removed server-side keeps
// polling harmlessly and just never sees a command or venue again.
func (s *Server) handlePoll(w http.ResponseWriter, req deviceLinkRequest) {
	if req.DeviceID == "" {
		writeValidationError(w, "deviceId is required for poll")
		return
	}

	s.registry.Heartbeat(req.DeviceID)

	statusApplied := false
	if req.Status != nil {
		statusApplied = s.registry.UpdateStatus(req.DeviceID, *req.Status)
	}
	s.recordPollTelemetry(req.DeviceID, statusApplied)

	cmd, venueID, ok := s.registry.PollCommand(req.DeviceID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"command": nil,
			"venueId": nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"command": cmd,
		"venueId": venueID,
	})
}

// handleAck clears the mailbox when the acked id matches the pending command.
// A stale or duplicate ack reports success false; a newer command stays put.
func (s *Server) handleAck(w http.ResponseWriter, req deviceLinkRequest) {
	if req.DeviceID == "" || req.CommandID == "" {
		writeValidationError(w, "deviceId and commandId are required for ack")
		return
	}

	acked := s.registry.Acknowledge(req.DeviceID, req.CommandID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": acked,
	})
}

// recordPollTelemetry ships a liveness tick, and the merged status snapshot
// when this poll carried one, to the telemetry store. Best-effort: history
// must never slow down or fail a poll.
func (s *Server) recordPollTelemetry(deviceID string, statusApplied bool) {
	if !s.telemetry.IsConnected() {
		return
	}

	device, err := s.registry.Get(deviceID)
	if err != nil {
		return
	}

	s.telemetry.WriteHeartbeat(device.ID, device.OrganizationID)
	if statusApplied && device.Status != nil {
		s.telemetry.WriteStatusSnapshot(device.ID, device.OrganizationID, device.VenueID, *device.Status)
	}
}
