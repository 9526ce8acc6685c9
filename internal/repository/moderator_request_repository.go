package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// ModeratorRequestRepository stores applications for the moderator role.
type ModeratorRequestRepository interface {
	Create(ctx context.Context, req *domain.ModeratorRequest) error
	GetByID(ctx context.Context, id string) (*domain.ModeratorRequest, error)
	LatestByApplicant(ctx context.Context, applicantID string) (*domain.ModeratorRequest, error)
	LatestByApplicantAndStatus(ctx context.Context, applicantID string, status domain.ModeratorRequestStatus) (*domain.ModeratorRequest, error)
	ListByStatus(ctx context.Context, status domain.ModeratorRequestStatus) ([]domain.ModeratorRequest, error)
	Decide(ctx context.Context, id string, status domain.ModeratorRequestStatus, reviewerID string, rejectedAt *time.Time) error
}

type moderatorRequestRepository struct {
	pool *pgxpool.Pool
}

// NewModeratorRequestRepository builds repository.
func NewModeratorRequestRepository(pool *pgxpool.Pool) ModeratorRequestRepository {
	return &moderatorRequestRepository{pool: pool}
}

const moderatorRequestColumns = `id, applicant_id, username, email, skills, status, reviewed_by, rejected_at, created_at`

func (r *moderatorRequestRepository) Create(ctx context.Context, req *domain.ModeratorRequest) error {
	const query = `
        INSERT INTO moderator_requests (applicant_id, username, email, skills, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	if req.Status == "" {
		req.Status = domain.ModeratorRequestPending
	}
	return r.pool.QueryRow(ctx, query,
		req.ApplicantID,
		req.Username,
		req.Email,
		nonNilStrings(req.Skills),
		req.Status,
	).Scan(&req.ID, &req.CreatedAt)
}

func (r *moderatorRequestRepository) GetByID(ctx context.Context, id string) (*domain.ModeratorRequest, error) {
	return scanModeratorRequest(r.pool.QueryRow(ctx,
		`SELECT `+moderatorRequestColumns+` FROM moderator_requests WHERE id=$1`, id))
}

func (r *moderatorRequestRepository) LatestByApplicant(ctx context.Context, applicantID string) (*domain.ModeratorRequest, error) {
	return scanModeratorRequest(r.pool.QueryRow(ctx,
		`SELECT `+moderatorRequestColumns+` FROM moderator_requests
         WHERE applicant_id=$1 ORDER BY created_at DESC LIMIT 1`, applicantID))
}

func (r *moderatorRequestRepository) LatestByApplicantAndStatus(ctx context.Context, applicantID string, status domain.ModeratorRequestStatus) (*domain.ModeratorRequest, error) {
	return scanModeratorRequest(r.pool.QueryRow(ctx,
		`SELECT `+moderatorRequestColumns+` FROM moderator_requests
         WHERE applicant_id=$1 AND status=$2 ORDER BY created_at DESC LIMIT 1`, applicantID, status))
}

func (r *moderatorRequestRepository) ListByStatus(ctx context.Context, status domain.ModeratorRequestStatus) ([]domain.ModeratorRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+moderatorRequestColumns+` FROM moderator_requests WHERE status=$1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ModeratorRequest
	for rows.Next() {
		req, err := scanModeratorRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

// Decide moves a pending request to its final status. It matches nothing once
// the request left pending, so concurrent reviews cannot both succeed.
func (r *moderatorRequestRepository) Decide(ctx context.Context, id string, status domain.ModeratorRequestStatus, reviewerID string, rejectedAt *time.Time) error {
	return execOne(ctx, r.pool,
		`UPDATE moderator_requests SET status=$1, reviewed_by=$2, rejected_at=$3 WHERE id=$4 AND status=$5`,
		status, reviewerID, rejectedAt, id, domain.ModeratorRequestPending)
}

func scanModeratorRequest(row pgx.Row) (*domain.ModeratorRequest, error) {
	var req domain.ModeratorRequest
	if err := row.Scan(
		&req.ID,
		&req.ApplicantID,
		&req.Username,
		&req.Email,
		&req.Skills,
		&req.Status,
		&req.ReviewedBy,
		&req.RejectedAt,
		&req.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
