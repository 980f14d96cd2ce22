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

const studentListColumns = `id, classroom_id, student_id, full_name, total, created_at, updated_at`

// Gradebook is the set of roster and grade writes that may share one transaction.
type Gradebook interface {
	ListRoster(ctx context.Context, classroomID string) ([]models.StudentListEntry, error)
	FindEntry(ctx context.Context, classroomID, studentID string) (*models.StudentListEntry, error)
	UpsertEntry(ctx context.Context, entry *models.StudentListEntry) error
	UpsertGrade(ctx context.Context, grade *models.Grade) error
	UpdateTotal(ctx context.Context, entryID, total string) error
	DeleteGradesByNames(ctx context.Context, classroomID string, names []string) (int64, error)
	ResetTotals(ctx context.Context, classroomID string) error
	UpdateGradeStructure(ctx context.Context, classroomID string, structure *models.GradeStructure) error
	FinalizeReviewsByComposition(ctx context.Context, classroomID, name string) (int64, error)
	FinalizeReview(ctx context.Context, reviewID string, expected models.GradeEntry) error
}

var _ Gradebook = (*GradebookRepository)(nil)

// GradebookRepository persists the roster (student_lists) and its grades.
// Methods run on the pool or, inside InTx, on a single transaction.
type GradebookRepository struct {
	db   queryer
	pool *sqlx.DB
}

// NewGradebookRepository creates a new repository instance.
func NewGradebookRepository(db *sqlx.DB) *GradebookRepository {
	return &GradebookRepository{db: db, pool: db}
}

// InTx runs fn against a transaction-bound copy of the repository. fn's error rolls back.
func (r *GradebookRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Gradebook) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	tx, err := r.pool.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gradebook tx: %w", err)
	}
	if err := fn(ctx, &GradebookRepository{db: tx}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gradebook tx: %w", err)
	}
	return nil
}

// ListRoster returns the roster of a classroom ordered by student id, each entry with its grades.
func (r *GradebookRepository) ListRoster(ctx context.Context, classroomID string) ([]models.StudentListEntry, error) {
	query := `SELECT ` + studentListColumns + ` FROM student_lists WHERE classroom_id = $1 ORDER BY student_id`
	var entries []models.StudentListEntry
	if err := r.db.SelectContext(ctx, &entries, query, classroomID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	const gradesQuery = `SELECT g.id, g.student_list_id, g.name, g.value, g.created_at, g.updated_at
        FROM grades g JOIN student_lists sl ON sl.id = g.student_list_id
        WHERE sl.classroom_id = $1 ORDER BY g.name`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, gradesQuery, classroomID); err != nil {
		return nil, fmt.Errorf("list roster grades: %w", err)
	}
	byEntry := make(map[string][]models.Grade, len(entries))
	for _, grade := range grades {
		byEntry[grade.StudentListID] = append(byEntry[grade.StudentListID], grade)
	}
	for i := range entries {
		entries[i].Grades = byEntry[entries[i].ID]
	}
	return entries, nil
}

// FindEntry returns one roster entry with its grades.
func (r *GradebookRepository) FindEntry(ctx context.Context, classroomID, studentID string) (*models.StudentListEntry, error) {
	var entry models.StudentListEntry
	query := `SELECT ` + studentListColumns + ` FROM student_lists WHERE classroom_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &entry, query, classroomID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find roster entry: %w", err)
	}
	const gradesQuery = `SELECT id, student_list_id, name, value, created_at, updated_at FROM grades WHERE student_list_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &entry.Grades, gradesQuery, entry.ID); err != nil {
		return nil, fmt.Errorf("list entry grades: %w", err)
	}
	return &entry, nil
}

// UpsertEntry inserts a roster row or refreshes the full name of an existing one.
func (r *GradebookRepository) UpsertEntry(ctx context.Context, entry *models.StudentListEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Total == "" {
		entry.Total = models.ZeroTotal
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO student_lists (id, classroom_id, student_id, full_name, total, created_at, updated_at)
        VALUES (:id, :classroom_id, :student_id, :full_name, :total, :created_at, :updated_at)
        ON CONFLICT (classroom_id, student_id)
        DO UPDATE SET full_name = EXCLUDED.full_name, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert roster entry: %w", err)
	}
	return nil
}

// UpsertGrade inserts or updates the value of one composition grade.
func (r *GradebookRepository) UpsertGrade(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_list_id, name, value, created_at, updated_at)
        VALUES (:id, :student_list_id, :name, :value, :created_at, :updated_at)
        ON CONFLICT (student_list_id, name)
        DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// UpdateTotal writes the cached weighted total of a roster entry.
func (r *GradebookRepository) UpdateTotal(ctx context.Context, entryID, total string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE student_lists SET total = $2, updated_at = $3 WHERE id = $1`, entryID, total, time.Now().UTC()); err != nil {
		return fmt.Errorf("update total: %w", err)
	}
	return nil
}

// DeleteGradesByNames removes every grade of the classroom whose composition name is listed.
func (r *GradebookRepository) DeleteGradesByNames(ctx context.Context, classroomID string, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM grades WHERE name IN (?)
        AND student_list_id IN (SELECT id FROM student_lists WHERE classroom_id = ?)`, names, classroomID)
	if err != nil {
		return 0, fmt.Errorf("build grade delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete grades: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ResetTotals sets every cached total of a classroom to zero.
func (r *GradebookRepository) ResetTotals(ctx context.Context, classroomID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE student_lists SET total = $2, updated_at = $3 WHERE classroom_id = $1 AND total <> $2`,
		classroomID, models.ZeroTotal, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset totals: %w", err)
	}
	return nil
}

// UpdateGradeStructure stores the rubric inside the gradebook transaction.
func (r *GradebookRepository) UpdateGradeStructure(ctx context.Context, classroomID string, structure *models.GradeStructure) error {
	return (&ClassroomRepository{db: r.db}).UpdateGradeStructure(ctx, classroomID, structure)
}

// FinalizeReviewsByComposition forces every open review on a composition to FINAL.
func (r *GradebookRepository) FinalizeReviewsByComposition(ctx context.Context, classroomID, name string) (int64, error) {
	return (&GradeReviewRepository{db: r.db}).FinalizeByComposition(ctx, classroomID, name)
}

// FinalizeReview closes a review inside the gradebook transaction.
func (r *GradebookRepository) FinalizeReview(ctx context.Context, reviewID string, expected models.GradeEntry) error {
	return (&GradeReviewRepository{db: r.db}).Finalize(ctx, reviewID, expected)
}
