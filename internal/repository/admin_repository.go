package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Admin mirrors the 'admins' table.
type Admin struct {
	ID           uint64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AdminRepo struct{ DB *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{DB: db} }

// Ensure upserts the seeded admin account. Ran at boot so the password
// configured in the environment always wins.
func (r *AdminRepo) Ensure(ctx context.Context, email, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO admins (email, password_hash) VALUES (?,?)
		 ON DUPLICATE KEY UPDATE password_hash=VALUES(password_hash)`,
		strings.ToLower(strings.TrimSpace(email)), passwordHash)
	return err
}

// GetByEmail fetches an admin by normalized email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (Admin, error) {
	var a Admin
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at,updated_at FROM admins WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetByID fetches an admin by id.
func (r *AdminRepo) GetByID(ctx context.Context, id uint64) (Admin, error) {
	var a Admin
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at,updated_at FROM admins WHERE id=? LIMIT 1",
		id).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
