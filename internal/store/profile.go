package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would duplicate a unique value,
	// such as another profile's name.
	ErrConflict = errors.New("conflict")
)

// mapConstraint turns a SQLite uniqueness violation into ErrConflict.
func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrConflict
	}
	return err
}

// Profile is a named set of HSV threshold ranges.
type Profile struct {
	ID                string
	Name              string
	HueMin            int
	HueMax            int
	SatMin            int
	SatMax            int
	ValMin            int
	ValMax            int
	IncludeSaturation bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const profileColumns = `id, name, hue_min, hue_max, sat_min, sat_max, val_min, val_max,
	include_saturation, created_at, updated_at`

// ProfileRepository provides CRUD operations for threshold profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(
		&p.ID, &p.Name,
		&p.HueMin, &p.HueMax, &p.SatMin, &p.SatMax, &p.ValMin, &p.ValMax,
		&p.IncludeSaturation, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new profile into the database.
func (r *ProfileRepository) Create(p *Profile) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO threshold_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name,
		p.HueMin, p.HueMax, p.SatMin, p.SatMax, p.ValMin, p.ValMax,
		p.IncludeSaturation, p.CreatedAt, p.UpdatedAt,
	)
	return mapConstraint(err)
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	row := r.db.QueryRow(
		`SELECT `+profileColumns+` FROM threshold_profiles WHERE id = ?`,
		id,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	row := r.db.QueryRow(
		`SELECT `+profileColumns+` FROM threshold_profiles WHERE name = ?`,
		name,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(
		`SELECT ` + profileColumns + ` FROM threshold_profiles ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Update updates an existing profile in the database.
func (r *ProfileRepository) Update(p *Profile) error {
	p.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE threshold_profiles SET name = ?,
		 hue_min = ?, hue_max = ?, sat_min = ?, sat_max = ?, val_min = ?, val_max = ?,
		 include_saturation = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name,
		p.HueMin, p.HueMax, p.SatMin, p.SatMax, p.ValMin, p.ValMax,
		p.IncludeSaturation, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return mapConstraint(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a profile from the database.
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM threshold_profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
