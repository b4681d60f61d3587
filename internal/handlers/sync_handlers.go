package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldledger/fieldledger/internal/models"
)

func (d *Deps) handlePush(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed push request")
		return
	}
	// The token claim is the authoritative device id; a body naming a
	// different device is rejected rather than silently overridden.
	if req.DeviceID != "" && req.DeviceID != claims.DeviceID.String() {
		writeError(w, http.StatusForbidden, "device id does not match token")
		return
	}

	resp, err := d.Pusher.Push(r.Context(), claims.WorkspaceID, claims.DeviceID, req.Changes)
	if err != nil {
		d.Logger.WithError(err).Error("push failed before apply")
		writeError(w, http.StatusInternalServerError, "push failed")
		return
	}

	d.recordPresence(r, string(models.StatusIdle))
	writeJSON(w, http.StatusOK, resp)
}

func (d *Deps) handlePull(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed since timestamp")
			return
		}
		since = &t
	}

	resp, err := d.Puller.Pull(r.Context(), claims.WorkspaceID, since)
	if err != nil {
		d.Logger.WithError(err).Error("pull failed")
		writeError(w, http.StatusInternalServerError, "pull failed")
		return
	}

	d.recordPresence(r, string(models.StatusIdle))
	writeJSON(w, http.StatusOK, resp)
}

// recordPresence marks the device's sync activity. Best effort: a presence
// miss never fails the sync call itself.
func (d *Deps) recordPresence(r *http.Request, status string) {
	claims := claimsFrom(r)
	presence := &models.Presence{
		WorkspaceID: claims.WorkspaceID,
		DeviceID:    claims.DeviceID,
		Status:      status,
	}
	if err := d.Presence.SetPresence(r.Context(), presence); err != nil {
		d.Logger.WithError(err).Warn("failed to record device presence")
	}
	if err := d.Devices.TouchLastSeen(r.Context(), claims.DeviceID); err != nil {
		d.Logger.WithError(err).Warn("failed to touch device last seen")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
