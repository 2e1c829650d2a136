package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/venuetone/fleet-core/internal/audit"
	"github.com/venuetone/fleet-core/internal/fleet"
)

// handleListDevices returns paired devices, optionally filtered by organization.
//
// Query parameters:
//   - orgId: organization ID, or "all" for the whole fleet (required)
//
// Each returned device carries the derived online flag, computed against the
// staleness threshold at read time.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("orgId")
	if orgID == "" {
		writeValidationError(w, "orgId query parameter is required")
		return
	}

	var devices []fleet.Device
	if orgID == "all" {
		devices = s.registry.ListAll()
	} else {
		devices = s.registry.ListByOrganization(orgID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// registerDeviceRequest is the body for POST /devices.
type registerDeviceRequest struct {
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

// handleRegisterDevice creates an unpaired device record and issues its
// pairing code. The code appears only in this response; listings never show
// unpaired devices, so the operator hands the code to the installer from here.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	device, err := s.registry.Register(req.Name, req.OrganizationID)
	if err != nil {
		switch {
		case errors.Is(err, fleet.ErrInvalidName), errors.Is(err, fleet.ErrInvalidOrganization):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("device registration failed", "error", err)
			writeInternalError(w, "failed to register device")
		}
		return
	}

	s.auditLog(audit.ActionRegister, device.ID, actorFromContext(r.Context()), audit.SourceAPI, map[string]any{
		"name":           device.Name,
		"organizationId": device.OrganizationID,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"device": device,
	})
}

// handleRemoveDevice deletes a device record and frees its pairing code.
//
// Removal is idempotent: an unknown id reports success false rather than an
// error, and any appliance still polling with that id degrades to benign
// no-ops on its next requests.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeValidationError(w, "id query parameter is required")
		return
	}

	removed := s.registry.Remove(id)
	if removed {
		s.auditLog(audit.ActionRemove, id, actorFromContext(r.Context()), audit.SourceAPI, nil)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": removed,
	})
}

// updateDeviceRequest is the body for PATCH /devices.
//
// The action field selects the mutation; the remaining fields are required
// per action.
type updateDeviceRequest struct {
	DeviceID    string         `json:"deviceId"`
	Action      string         `json:"action"`
	VenueID     string         `json:"venueId,omitempty"`
	CommandType string         `json:"commandType,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// handleUpdateDevice applies an operator mutation to a device.
//
// Actions:
//   - assign_venue: binds the device to venueId → {"success": bool}
//   - unassign_venue: clears the venue binding → {"success": bool}
//   - send_command: places a command in the device mailbox, superseding any
//     unacknowledged one → {"command": Command}
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeValidationError(w, "deviceId is required")
		return
	}

	actor := actorFromContext(r.Context())

	switch req.Action {
	case "assign_venue":
		if req.VenueID == "" {
			writeValidationError(w, "venueId is required for assign_venue")
			return
		}
		ok := s.registry.AssignVenue(req.DeviceID, req.VenueID)
		if ok {
			s.auditLog(audit.ActionAssignVenue, req.DeviceID, actor, audit.SourceAPI, map[string]any{
				"venueId": req.VenueID,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": ok})

	case "unassign_venue":
		ok := s.registry.UnassignVenue(req.DeviceID)
		if ok {
			s.auditLog(audit.ActionUnassignVenue, req.DeviceID, actor, audit.SourceAPI, nil)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": ok})

	case "send_command":
		if req.CommandType == "" {
			writeValidationError(w, "commandType is required for send_command")
			return
		}
		cmd, err := s.registry.SendCommand(req.DeviceID, req.CommandType, req.Payload)
		if err != nil {
			switch {
			case errors.Is(err, fleet.ErrDeviceNotFound):
				writeNotFound(w, "device not found")
			case errors.Is(err, fleet.ErrInvalidCommand):
				writeValidationError(w, err.Error())
			default:
				s.logger.Error("send command failed", "device_id", req.DeviceID, "error", err)
				writeInternalError(w, "failed to send command")
			}
			return
		}
		s.auditLog(audit.ActionCommand, req.DeviceID, actor, audit.SourceAPI, map[string]any{
			"commandId":   cmd.ID,
			"commandType": cmd.Type,
		})
		writeJSON(w, http.StatusOK, map[string]any{"command": cmd})

	default:
		writeValidationError(w, "unknown action: must be assign_venue, unassign_venue or send_command")
	}
}
