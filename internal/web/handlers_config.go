package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"patchplan/internal/logging"
	"patchplan/internal/panel"
	"patchplan/internal/security"
)

// handleListConfigurations returns the merged view: defaults not
// shadowed by a user configuration, then user configurations.
func (s *Server) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.store.AllConfigurations())
}

// handleListDefaultConfigurations returns the bundled defaults.
func (s *Server) handleListDefaultConfigurations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.store.DefaultConfigurations())
}

// handleListUserConfigurations returns the user-authored configurations.
func (s *Server) handleListUserConfigurations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.store.UserConfigurations())
}

// handleGetConfiguration looks up one configuration in the merged view.
func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, ok := s.store.Get(id)
	if !ok {
		respondError(w, r, fmt.Errorf("configuration not found: %s", id), http.StatusNotFound)
		return
	}

	writeJSON(w, r, cfg)
}

// handleSaveConfiguration validates and persists a user configuration.
// All text, enum and numeric fields pass through the sanitizers before
// the configuration is stored; the editor bounds on units, trays and
// ports are enforced here rather than in the model.
func (s *Server) handleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	var cfg panel.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, r, fmt.Errorf("invalid configuration body: %w", err), http.StatusBadRequest)
		return
	}

	if err := sanitizeConfiguration(&cfg); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if cfg.ID == "" {
		cfg.ID = panel.NewConfigurationID()
	}
	cfg.IsDefault = false

	s.store.SaveUserConfiguration(r.Context(), cfg)

	logging.FromContext(r.Context()).Info("configuration saved",
		"configuration_id", cfg.ID,
		"name", cfg.Name,
		"cards", cfg.CardCount(),
	)

	writeJSON(w, r, cfg)
}

// handleNewConfiguration returns a fresh unsaved configuration seeded
// with a single unit holding the default tray.
func (s *Server) handleNewConfiguration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if r.Body != nil {
		// Missing or empty body is fine; the name just defaults.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	name := security.ValidateTextInput(body.Name, panel.MaxNameLength)
	if name == "" {
		name = "New Patch Panel Configuration"
	}

	writeJSON(w, r, panel.NewConfiguration(name))
}

// handleDeleteConfiguration removes a user configuration. Defaults are
// rejected up front so a shadowing user entry cannot be confused with
// the bundled default it shadows.
func (s *Server) handleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.store.IsDefaultConfiguration(id) {
		respondError(w, r, fmt.Errorf("cannot delete a default configuration: %s", id), http.StatusBadRequest)
		return
	}

	s.store.DeleteUserConfiguration(r.Context(), id)

	logging.FromContext(r.Context()).Info("configuration deleted", "configuration_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// handleCopyConfiguration clones a default configuration into an
// unsaved user configuration with a fresh id.
func (s *Server) handleCopyConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		NewName string `json:"newName"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	newName := security.ValidateTextInput(body.NewName, panel.MaxNameLength)

	copied, err := s.store.CreateCopyOfDefault(id, newName)
	if err != nil {
		if errors.Is(err, panel.ErrDefaultNotFound) {
			respondError(w, r, err, http.StatusNotFound)
			return
		}
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, copied)
}

// handleExportConfiguration renders a configuration as a CSV download.
func (s *Server) handleExportConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, ok := s.store.Get(id)
	if !ok {
		respondError(w, r, fmt.Errorf("configuration not found: %s", id), http.StatusNotFound)
		return
	}

	csvText := panel.ExportCSV(cfg)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, panel.ExportFileName(cfg.Name)))
	w.Write([]byte(csvText))
}

// sanitizeConfiguration normalizes a submitted configuration in place:
// text fields are cleaned, enum fields snap to an allowed value, port
// counts clamp to the valid range, and the unit/tray bounds are
// enforced. Returns an error only for violations the sanitizers cannot
// repair.
func sanitizeConfiguration(cfg *panel.Configuration) error {
	cfg.Name = security.ValidateTextInput(cfg.Name, panel.MaxNameLength)
	if cfg.Name == "" {
		return errors.New("configuration name is required")
	}

	if len(cfg.Panels) == 0 {
		return errors.New("configuration needs at least one panel unit")
	}
	if len(cfg.Panels) > panel.MaxUnits {
		return fmt.Errorf("configuration exceeds %d panel units", panel.MaxUnits)
	}

	for ui := range cfg.Panels {
		unit := &cfg.Panels[ui]
		if len(unit.Trays) > panel.MaxTraysPerUnit {
			return fmt.Errorf("panel unit %d exceeds %d trays", unit.Number, panel.MaxTraysPerUnit)
		}
		for ti := range unit.Trays {
			tray := &unit.Trays[ti]
			for ci := range tray.Cards {
				card := &tray.Cards[ci]
				card.Type = panel.CardType(security.ValidateSelectInput(string(card.Type), panel.CardTypes))
				card.LinkSpeed = panel.LinkSpeed(security.ValidateSelectInput(string(card.LinkSpeed), panel.LinkSpeeds))
				card.Ports = security.ClampInt(card.Ports, panel.MinPorts, panel.MaxPorts)
			}
		}
	}

	return nil
}
