package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ayusman/lasertracker/internal/config"
	"github.com/ayusman/lasertracker/internal/detector"
	"github.com/ayusman/lasertracker/internal/log"
	"github.com/ayusman/lasertracker/internal/store"
)

// databasePath returns path, or ~/.lasertracker/lasertracker.db when empty.
func databasePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".lasertracker", "lasertracker.db"), nil
}

// applyProfile loads cfg.Profile from the store into cfg. Flags given on
// the command line keep precedence over the stored ranges.
func applyProfile(st *store.Store, cfg *config.Config) error {
	if cfg.Profile == "" {
		return nil
	}

	p, err := st.Profiles().GetByName(cfg.Profile)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("profile %q does not exist", cfg.Profile)
		}
		return err
	}

	cfg.ApplyRanges(
		detector.Range{Min: p.HueMin, Max: p.HueMax},
		detector.Range{Min: p.SatMin, Max: p.SatMax},
		detector.Range{Min: p.ValMin, Max: p.ValMax},
		p.IncludeSaturation,
	)

	if err := st.Settings().Set(store.SettingActiveProfile, p.Name); err != nil {
		log.Warn("Failed to record active profile", "err", err)
	}
	log.Info("Loaded profile", "profile", p.Name)
	return nil
}

// saveProfile stores the effective ranges under cfg.SaveProfile, replacing
// the ranges of an existing profile with that name.
func saveProfile(st *store.Store, cfg *config.Config) error {
	if cfg.SaveProfile == "" {
		return nil
	}

	repo := st.Profiles()
	p, err := repo.GetByName(cfg.SaveProfile)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = &store.Profile{ID: uuid.New().String(), Name: cfg.SaveProfile}
		fillProfile(p, cfg)
		err = repo.Create(p)
	case err == nil:
		fillProfile(p, cfg)
		err = repo.Update(p)
	}
	if err != nil {
		return err
	}

	if err := st.Settings().Set(store.SettingActiveProfile, p.Name); err != nil {
		log.Warn("Failed to record active profile", "err", err)
	}
	log.Info("Saved profile", "profile", p.Name, "id", p.ID)
	return nil
}

func fillProfile(p *store.Profile, cfg *config.Config) {
	p.HueMin, p.HueMax = cfg.HueMin, cfg.HueMax
	p.SatMin, p.SatMax = cfg.SatMin, cfg.SatMax
	p.ValMin, p.ValMax = cfg.ValMin, cfg.ValMax
	p.IncludeSaturation = cfg.IncludeSaturation
}

// findWebDir returns the first web directory found next to the working
// directory or under ~/.lasertracker, or "" if there is none.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".lasertracker", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
