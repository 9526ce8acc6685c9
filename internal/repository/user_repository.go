package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// UserRepository defines persistence access for accounts, including the
// resolution statistics of moderators and admins.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Count(ctx context.Context) (int, error)
	ListByRoles(ctx context.Context, roles ...domain.Role) ([]domain.User, error)
	ListAll(ctx context.Context) ([]domain.User, error)
	UpdateStats(ctx context.Context, id string, totalResolved int, avgHours float64) error
	TouchLastAssigned(ctx context.Context, id string, at time.Time) error
	UpdatePresence(ctx context.Context, id string, presence domain.Presence, at time.Time) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, role, skills, total_tickets_resolved,
        average_resolution_time_hours, last_assigned_at, presence, last_seen, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, password_hash, role, skills, presence)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, total_tickets_resolved, average_resolution_time_hours, created_at, updated_at`

	if user.Presence == "" {
		user.Presence = domain.PresenceOffline
	}
	return r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		nonNilStrings(user.Skills),
		user.Presence,
	).Scan(&user.ID, &user.TotalTicketsResolved, &user.AverageResolutionTimeHours, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET username=$1, email=$2, password_hash=$3, role=$4, skills=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		nonNilStrings(user.Skills),
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
}

// GetByIdentifier matches either the email (case-insensitive) or the username.
func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.fetchSingle(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1) OR username=$1 LIMIT 1`, identifier)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// ListByRoles returns accounts holding any of roles, oldest first.
func (r *userRepository) ListByRoles(ctx context.Context, roles ...domain.Role) ([]domain.User, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ANY($1) ORDER BY created_at ASC`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ListAll(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) UpdateStats(ctx context.Context, id string, totalResolved int, avgHours float64) error {
	const query = `
        UPDATE users SET total_tickets_resolved=$1, average_resolution_time_hours=$2, updated_at=NOW()
        WHERE id=$3`
	return execOne(ctx, r.pool, query, totalResolved, avgHours, id)
}

func (r *userRepository) TouchLastAssigned(ctx context.Context, id string, at time.Time) error {
	return execOne(ctx, r.pool, `UPDATE users SET last_assigned_at=$1 WHERE id=$2`, at, id)
}

func (r *userRepository) UpdatePresence(ctx context.Context, id string, presence domain.Presence, at time.Time) error {
	return execOne(ctx, r.pool, `UPDATE users SET presence=$1, last_seen=$2 WHERE id=$3`, presence, at, id)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Skills,
		&user.TotalTicketsResolved,
		&user.AverageResolutionTimeHours,
		&user.LastAssignedAt,
		&user.Presence,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}
