package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Threshold profiles - named HSV range presets
		`CREATE TABLE IF NOT EXISTS threshold_profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			hue_min INTEGER NOT NULL,
			hue_max INTEGER NOT NULL,
			sat_min INTEGER NOT NULL,
			sat_max INTEGER NOT NULL,
			val_min INTEGER NOT NULL,
			val_max INTEGER NOT NULL,
			include_saturation INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_threshold_profiles_name ON threshold_profiles(name)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
