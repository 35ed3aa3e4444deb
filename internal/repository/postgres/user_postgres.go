package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// UserPostgres resolves users from the users table.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

func (r *UserPostgres) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	const q = `SELECT id, email, role FROM users WHERE id = $1`
	var (
		u    model.User
		role string
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &role); err != nil {
		return model.User{}, mapError(err, model.EntityUser, id.String())
	}
	u.Role = model.Role(role)
	return u, nil
}
