// Package api provides HTTP API handlers for lasertracker threshold profiles.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/lasertracker/internal/detector"
	"github.com/ayusman/lasertracker/internal/store"
)

// ProfileHandler handles HTTP requests for threshold profile resources.
type ProfileHandler struct {
	store *store.Store
}

// NewProfileHandler creates a new ProfileHandler with the given store.
func NewProfileHandler(s *store.Store) *ProfileHandler {
	return &ProfileHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/profiles or /api/profiles/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createProfileRequest struct {
	Name              string          `json:"name"`
	Hue               *detector.Range `json:"hue"`
	Saturation        *detector.Range `json:"saturation"`
	Value             *detector.Range `json:"value"`
	IncludeSaturation bool            `json:"include_saturation"`
}

type updateProfileRequest struct {
	Name              string          `json:"name"`
	Hue               *detector.Range `json:"hue"`
	Saturation        *detector.Range `json:"saturation"`
	Value             *detector.Range `json:"value"`
	IncludeSaturation *bool           `json:"include_saturation"`
}

type profileResponse struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Hue               detector.Range `json:"hue"`
	Saturation        detector.Range `json:"saturation"`
	Value             detector.Range `json:"value"`
	IncludeSaturation bool           `json:"include_saturation"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Profile to a profileResponse.
func toResponse(p *store.Profile) profileResponse {
	return profileResponse{
		ID:                p.ID,
		Name:              p.Name,
		Hue:               detector.Range{Min: p.HueMin, Max: p.HueMax},
		Saturation:        detector.Range{Min: p.SatMin, Max: p.SatMax},
		Value:             detector.Range{Min: p.ValMin, Max: p.ValMax},
		IncludeSaturation: p.IncludeSaturation,
		CreatedAt:         p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func setHue(p *store.Profile, r detector.Range)        { p.HueMin, p.HueMax = r.Min, r.Max }
func setSaturation(p *store.Profile, r detector.Range) { p.SatMin, p.SatMax = r.Min, r.Max }
func setValue(p *store.Profile, r detector.Range)      { p.ValMin, p.ValMax = r.Min, r.Max }

// validRange rejects bounds no 8-bit channel could use. Min > Max is allowed
// and matches nothing.
func validRange(r detector.Range) bool {
	return r.Min >= 0 && r.Max >= 0 && r.Min <= 256 && r.Max <= 256
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/profiles and returns all profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, toResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id} and returns a single profile.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(profile))
}

// nameTaken reports whether another profile already uses name.
func (h *ProfileHandler) nameTaken(name, id string) (bool, error) {
	existing, err := h.store.Profiles().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID != id, nil
}

// create handles POST /api/profiles and creates a new profile.
// Omitted ranges take the detector defaults.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	defaults := detector.DefaultConfig()
	profile := &store.Profile{
		ID:                uuid.New().String(),
		Name:              req.Name,
		IncludeSaturation: req.IncludeSaturation,
	}
	setHue(profile, defaults.Hue)
	setSaturation(profile, defaults.Saturation)
	setValue(profile, defaults.Value)

	if !h.applyRanges(w, profile, req.Hue, req.Saturation, req.Value) {
		return
	}

	taken, err := h.nameTaken(profile.Name, profile.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	// The store catches a name claimed between the check and the insert.
	if err := h.store.Profiles().Create(profile); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Profile name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(profile))
}

// update handles PUT /api/profiles/{id} and updates an existing profile.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Update fields if provided
	if req.Name != "" {
		taken, err := h.nameTaken(req.Name, profile.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update profile")
			return
		}
		if taken {
			writeError(w, http.StatusConflict, "Profile name already exists")
			return
		}
		profile.Name = req.Name
	}
	if !h.applyRanges(w, profile, req.Hue, req.Saturation, req.Value) {
		return
	}
	if req.IncludeSaturation != nil {
		profile.IncludeSaturation = *req.IncludeSaturation
	}

	if err := h.store.Profiles().Update(profile); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "Profile name already exists")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Profile not found")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponse(profile))
}

// applyRanges copies the non-nil ranges into p. It writes a 400 and returns
// false if any range is out of bounds.
func (h *ProfileHandler) applyRanges(w http.ResponseWriter, p *store.Profile, hue, sat, val *detector.Range) bool {
	for _, r := range []*detector.Range{hue, sat, val} {
		if r != nil && !validRange(*r) {
			writeError(w, http.StatusBadRequest, "Range bounds must be between 0 and 256")
			return false
		}
	}
	if hue != nil {
		setHue(p, *hue)
	}
	if sat != nil {
		setSaturation(p, *sat)
	}
	if val != nil {
		setValue(p, *val)
	}
	return true
}

// delete handles DELETE /api/profiles/{id} and removes a profile.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Profiles().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
