package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-grading-api/internal/models"
)

const membershipColumns = `id, classroom_id, user_id, role, student_id, created_at`

// MembershipRepository persists teacher and student memberships.
type MembershipRepository struct {
	db queryer
}

// NewMembershipRepository creates a new repository instance.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Find returns the membership of a user in a classroom.
func (r *MembershipRepository) Find(ctx context.Context, classroomID, userID string) (*models.Membership, error) {
	var membership models.Membership
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE classroom_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &membership, query, classroomID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &membership, nil
}

// FindByStudentID returns the membership carrying a roster id in a classroom.
func (r *MembershipRepository) FindByStudentID(ctx context.Context, classroomID, studentID string) (*models.Membership, error) {
	var membership models.Membership
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE classroom_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &membership, query, classroomID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find membership by student id: %w", err)
	}
	return &membership, nil
}

// ListByClassroom returns every membership of a classroom, optionally narrowed to roles.
func (r *MembershipRepository) ListByClassroom(ctx context.Context, classroomID string, roles ...models.ClassroomRole) ([]models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE classroom_id = ?`
	args := []interface{}{classroomID}
	if len(roles) > 0 {
		query += ` AND role IN (?)`
		args = append(args, roles)
	}
	query += ` ORDER BY created_at`
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build membership query: %w", err)
	}
	var memberships []models.Membership
	if err := r.db.SelectContext(ctx, &memberships, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

// ListMembers returns memberships joined with account details.
func (r *MembershipRepository) ListMembers(ctx context.Context, classroomID string) ([]models.Member, error) {
	const query = `SELECT m.id, m.classroom_id, m.user_id, m.role, m.student_id, m.created_at, u.email, u.full_name
        FROM memberships m JOIN users u ON u.id = m.user_id
        WHERE m.classroom_id = $1 ORDER BY m.role, u.full_name`
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, classroomID); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// Create inserts a membership.
func (r *MembershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	membership.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO memberships (id, classroom_id, user_id, role, student_id, created_at)
        VALUES (:id, :classroom_id, :user_id, :role, :student_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// Delete removes a user from a classroom.
func (r *MembershipRepository) Delete(ctx context.Context, classroomID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE classroom_id = $1 AND user_id = $2`, classroomID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return expectAffected(res)
}

// UpdateStudentID sets or clears the roster id of a membership.
func (r *MembershipRepository) UpdateStudentID(ctx context.Context, id string, studentID *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE memberships SET student_id = $2 WHERE id = $1`, id, studentID)
	if err != nil {
		return fmt.Errorf("update student id: %w", err)
	}
	return expectAffected(res)
}
