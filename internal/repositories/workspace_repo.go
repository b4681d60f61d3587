package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldledger/fieldledger/internal/models"
)

type PostgresWorkspaceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresWorkspaceRepository(pool *pgxpool.Pool) *PostgresWorkspaceRepository {
	return &PostgresWorkspaceRepository{pool: pool}
}

func (r *PostgresWorkspaceRepository) Create(ctx context.Context, workspace *models.Workspace) error {
	query := `INSERT INTO workspaces (name)
	          VALUES ($1)
	          RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, workspace.Name).
		Scan(&workspace.ID, &workspace.CreatedAt, &workspace.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (r *PostgresWorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	query := `SELECT id, name, created_at, updated_at, deleted_at
	          FROM workspaces
	          WHERE id = $1 AND deleted_at IS NULL`

	var workspace models.Workspace
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&workspace.ID,
		&workspace.Name,
		&workspace.CreatedAt,
		&workspace.UpdatedAt,
		&workspace.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &workspace, nil
}

func (r *PostgresWorkspaceRepository) AddMember(ctx context.Context, membership *models.Membership) error {
	query := `INSERT INTO memberships (workspace_id, user_id, role)
	          VALUES ($1, $2, $3)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, membership.WorkspaceID, membership.UserID, string(membership.Role)).
		Scan(&membership.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *PostgresWorkspaceRepository) GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (*models.Membership, error) {
	query := `SELECT workspace_id, user_id, role, created_at
	          FROM memberships
	          WHERE workspace_id = $1 AND user_id = $2`

	var membership models.Membership
	var role string
	err := r.pool.QueryRow(ctx, query, workspaceID, userID).Scan(
		&membership.WorkspaceID,
		&membership.UserID,
		&role,
		&membership.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	membership.Role = models.MembershipRole(role)
	return &membership, nil
}

func (r *PostgresWorkspaceRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Membership, error) {
	query := `SELECT workspace_id, user_id, role, created_at
	          FROM memberships
	          WHERE workspace_id = $1
	          ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		var membership models.Membership
		var role string
		err := rows.Scan(&membership.WorkspaceID, &membership.UserID, &role, &membership.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		membership.Role = models.MembershipRole(role)
		members = append(members, &membership)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}
