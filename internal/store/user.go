package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/bandcoach/internal/model"
)

const userColumns = `id, email, full_name, password_hash, age, address, phone,
	current_band, target_band, role, onboarded, active, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Age, &u.Address, &u.Phone,
		&u.CurrentBand, &u.TargetBand, &u.Role, &u.Onboarded, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user and returns it with its generated ID.
func (s *Store) CreateUser(u model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := s.db.Exec(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.Age, u.Address, u.Phone,
		u.CurrentBand, u.TargetBand, u.Role, u.Onboarded, u.Active, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("user %s: %w", u.Email, ErrConflict)
	}
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return nil, err
	}
	slog.Info("created user", "id", u.ID, "email", u.Email, "role", u.Role)
	return &u, nil
}

// GetUserByEmail returns a user by email, ignoring case.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	return u, notFound(err)
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, notFound(err)
}

// UpdateUser saves the editable profile fields of u.
func (s *Store) UpdateUser(u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE users SET full_name = ?, age = ?, address = ?, phone = ?,
		 current_band = ?, target_band = ?, onboarded = ?, updated_at = ?
		 WHERE id = ?`,
		u.FullName, u.Age, u.Address, u.Phone, u.CurrentBand, u.TargetBand, u.Onboarded, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetCurrentBand overwrites the stored current band of a user.
func (s *Store) SetCurrentBand(id string, band float64) error {
	res, err := s.db.Exec(`UPDATE users SET current_band = ?, updated_at = ? WHERE id = ?`, band, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListUsers returns all users, oldest first.
func (s *Store) ListUsers() ([]model.User, error) {
	return s.queryUsers(`SELECT ` + userColumns + ` FROM users ORDER BY created_at, rowid`)
}

// ListStudents returns all users with the student role.
func (s *Store) ListStudents() ([]model.User, error) {
	return s.queryUsers(`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at, rowid`, model.UserRoleStudent)
}

func (s *Store) queryUsers(query string, args ...any) ([]model.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(id string) error {
	res, err := s.db.Exec(`UPDATE users SET active = NOT active, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
