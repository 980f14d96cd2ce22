package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-grading-api/internal/models"
)

const classroomColumns = `id, name, description, section, subject, room, code, host_id, grade_structure, active, created_at, updated_at`

// ClassroomRepository persists classrooms and their grade structure.
type ClassroomRepository struct {
	db queryer
}

// NewClassroomRepository creates a new repository instance.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// FindByID returns a classroom by id.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	var classroom models.Classroom
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE id = $1`
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find classroom: %w", err)
	}
	return &classroom, nil
}

// ListForUser returns classrooms the user hosts or belongs to, newest first.
func (r *ClassroomRepository) ListForUser(ctx context.Context, userID string) ([]models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms
        WHERE host_id = $1 OR id IN (SELECT classroom_id FROM memberships WHERE user_id = $1)
        ORDER BY created_at DESC`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, userID); err != nil {
		return nil, fmt.Errorf("list classrooms for user: %w", err)
	}
	return classrooms, nil
}

// List returns classrooms matching the filter plus the total count.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter.Active != nil {
		where += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := `SELECT ` + classroomColumns + ` FROM classrooms` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classrooms`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return classrooms, total, nil
}

// Create inserts a classroom. The caller supplies the join code.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	classroom.CreatedAt = now
	classroom.UpdatedAt = now
	const query = `INSERT INTO classrooms (id, name, description, section, subject, room, code, host_id, grade_structure, active, created_at, updated_at)
        VALUES (:id, :name, :description, :section, :subject, :room, :code, :host_id, :grade_structure, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// UpdateInfo updates the descriptive fields of a classroom.
func (r *ClassroomRepository) UpdateInfo(ctx context.Context, classroom *models.Classroom) error {
	classroom.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms SET name = :name, description = :description, section = :section,
        subject = :subject, room = :room, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, classroom)
	if err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return expectAffected(res)
}

// SetActive locks or unlocks a classroom.
func (r *ClassroomRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE classrooms SET active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set classroom active: %w", err)
	}
	return expectAffected(res)
}

// UpdateGradeStructure stores a new rubric. A nil structure clears it.
func (r *ClassroomRepository) UpdateGradeStructure(ctx context.Context, id string, structure *models.GradeStructure) error {
	res, err := r.db.ExecContext(ctx, `UPDATE classrooms SET grade_structure = $2, updated_at = $3 WHERE id = $1`, id, structure, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade structure: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
