package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// ProjectRepository handles project-related database operations. Flow
// definitions are stored as JSONB documents, one row per flow.
type ProjectRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewProjectRepository(db *sql.DB, logger *slog.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `
		id
	  , name
	  , description
	  , active
	  , version
	  , user_grants
	  , group_grants
	  , proxy_users
	  , created_at
	  , updated_at
`

// Projects returns all projects, flows included.
func (r *ProjectRepository) Projects(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	projects := make([]*models.Project, 0)

	for rows.Next() {
		project, err := r.scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		projects = append(projects, project)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	for _, project := range projects {
		if err := r.loadFlows(ctx, project); err != nil {
			return nil, err
		}
	}

	return projects, nil
}

func (r *ProjectRepository) ProjectByID(ctx context.Context, id int) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	return r.getProject(ctx, query, id)
}

func (r *ProjectRepository) ProjectByName(ctx context.Context, name string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = $1`

	return r.getProject(ctx, query, name)
}

func (r *ProjectRepository) getProject(ctx context.Context, query string, arg any) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, query, arg)

	project, err := r.scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrProjectNotFound
		}

		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	if err := r.loadFlows(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// SaveProject upserts the project row and rewrites its flow set.
func (r *ProjectRepository) SaveProject(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()

	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	userGrants, err := json.Marshal(project.UserGrants)
	if err != nil {
		return fmt.Errorf("failed to marshal user grants: %w", err)
	}

	groupGrants, err := json.Marshal(project.GroupGrants)
	if err != nil {
		return fmt.Errorf("failed to marshal group grants: %w", err)
	}

	proxyUsers, err := json.Marshal(project.ProxyUsers)
	if err != nil {
		return fmt.Errorf("failed to marshal proxy users: %w", err)
	}

	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if project.ID == 0 {
		insert := `
			INSERT INTO projects (name, description, active, version, user_grants, group_grants, proxy_users, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`

		err = transaction.QueryRowContext(ctx, insert,
			project.Name, project.Description, project.Active, project.Version,
			userGrants, groupGrants, proxyUsers, project.CreatedAt, project.UpdatedAt,
		).Scan(&project.ID)
	} else {
		update := `
			INSERT INTO projects (id, name, description, active, version, user_grants, group_grants, proxy_users, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				active = EXCLUDED.active,
				version = EXCLUDED.version,
				user_grants = EXCLUDED.user_grants,
				group_grants = EXCLUDED.group_grants,
				proxy_users = EXCLUDED.proxy_users,
				updated_at = EXCLUDED.updated_at
		`

		_, err = transaction.ExecContext(ctx, update,
			project.ID, project.Name, project.Description, project.Active, project.Version,
			userGrants, groupGrants, proxyUsers, project.CreatedAt, project.UpdatedAt,
		)
	}

	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to save project: %w", err)
	}

	if err := r.saveFlows(ctx, transaction, project); err != nil {
		_ = transaction.Rollback()

		return err
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}

	return nil
}

func (r *ProjectRepository) DeleteProject(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrProjectNotFound
	}

	return nil
}

// UpdateFlow upserts a single flow row without touching the rest of the set.
func (r *ProjectRepository) UpdateFlow(ctx context.Context, project *models.Project, flow *models.Flow) error {
	definition, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	query := `
		INSERT INTO project_flows (project_id, id, definition, locked, lock_error_message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, id) DO UPDATE SET
			definition = EXCLUDED.definition,
			locked = EXCLUDED.locked,
			lock_error_message = EXCLUDED.lock_error_message
	`

	_, err = r.db.ExecContext(ctx, query, project.ID, flow.ID, definition, flow.Locked, flow.LockErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}

	return nil
}

func (r *ProjectRepository) saveFlows(ctx context.Context, transaction *sql.Tx, project *models.Project) error {
	_, err := transaction.ExecContext(ctx, `DELETE FROM project_flows WHERE project_id = $1`, project.ID)
	if err != nil {
		return fmt.Errorf("failed to clear project flows: %w", err)
	}

	insert := `
		INSERT INTO project_flows (project_id, id, definition, locked, lock_error_message)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, flowID := range project.FlowIDs() {
		flow := project.Flows[flowID]

		definition, err := json.Marshal(flow)
		if err != nil {
			return fmt.Errorf("failed to marshal flow %s: %w", flow.ID, err)
		}

		_, err = transaction.ExecContext(ctx, insert, project.ID, flow.ID, definition, flow.Locked, flow.LockErrorMessage)
		if err != nil {
			return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
		}
	}

	return nil
}

func (r *ProjectRepository) loadFlows(ctx context.Context, project *models.Project) error {
	query := `
		SELECT definition, locked, lock_error_message
		FROM project_flows
		WHERE project_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, project.ID)
	if err != nil {
		return fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	project.Flows = make(map[string]*models.Flow)

	for rows.Next() {
		var (
			definition       []byte
			locked           bool
			lockErrorMessage string
		)

		if err := rows.Scan(&definition, &locked, &lockErrorMessage); err != nil {
			return fmt.Errorf("failed to scan flow: %w", err)
		}

		var flow models.Flow
		if err := json.Unmarshal(definition, &flow); err != nil {
			return fmt.Errorf("failed to unmarshal flow: %w", err)
		}

		flow.Locked = locked
		flow.LockErrorMessage = lockErrorMessage
		project.Flows[flow.ID] = &flow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating flows: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ProjectRepository) scanProject(row rowScanner) (*models.Project, error) {
	var (
		project     models.Project
		userGrants  []byte
		groupGrants []byte
		proxyUsers  []byte
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Active,
		&project.Version,
		&userGrants,
		&groupGrants,
		&proxyUsers,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(userGrants, &project.UserGrants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user grants: %w", err)
	}

	if err := json.Unmarshal(groupGrants, &project.GroupGrants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group grants: %w", err)
	}

	if err := json.Unmarshal(proxyUsers, &project.ProxyUsers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proxy users: %w", err)
	}

	return &project, nil
}
