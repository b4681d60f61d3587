package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/repositories"
	"github.com/fieldledger/fieldledger/internal/utils"
)

type enrollDeviceRequest struct {
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	Secret     string `json:"secret"`
}

func (d *Deps) handleEnrollDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req enrollDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed enrollment request")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "device name is required")
		return
	}

	hash, err := utils.HashDeviceSecret(req.Secret)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	device := &models.Device{
		WorkspaceID: claims.WorkspaceID,
		Name:        req.Name,
		DeviceType:  req.DeviceType,
		SecretHash:  hash,
	}
	if err := d.Devices.Create(r.Context(), device); err != nil {
		d.Logger.WithError(err).Error("device enrollment failed")
		writeError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

type deviceView struct {
	*models.Device
	Presence string     `json:"presence"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

func (d *Deps) handleListDevices(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	devices, err := d.Devices.ListByWorkspaceID(r.Context(), claims.WorkspaceID)
	if err != nil {
		d.Logger.WithError(err).Error("device list failed")
		writeError(w, http.StatusInternalServerError, "device list failed")
		return
	}

	ids := make([]uuid.UUID, len(devices))
	for i, device := range devices {
		ids[i] = device.ID
	}
	presence, err := d.Presence.GetBulkPresence(r.Context(), ids)
	if err != nil {
		d.Logger.WithError(err).Warn("bulk presence lookup failed")
		presence = map[uuid.UUID]models.Presence{}
	}

	views := make([]deviceView, len(devices))
	for i, device := range devices {
		view := deviceView{Device: device, Presence: string(models.StatusOffline)}
		if p, ok := presence[device.ID]; ok && p.Status != "" {
			view.Presence = p.Status
			if !p.LastSeen.IsZero() {
				seen := p.LastSeen
				view.LastSync = &seen
			}
		}
		views[i] = view
	}

	writeJSON(w, http.StatusOK, views)
}

func (d *Deps) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed device id")
		return
	}

	// Only a device inside the caller's workspace can be revoked.
	device, err := d.Devices.GetByID(r.Context(), deviceID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		d.Logger.WithError(err).Error("device lookup failed")
		writeError(w, http.StatusInternalServerError, "revoke failed")
		return
	}
	if device.WorkspaceID != claims.WorkspaceID {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	if err := d.Devices.Revoke(r.Context(), deviceID); err != nil {
		d.Logger.WithError(err).Error("device revoke failed")
		writeError(w, http.StatusInternalServerError, "revoke failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
