package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
	"github.com/noah-isme/classroom-grading-api/pkg/export"
	"github.com/noah-isme/classroom-grading-api/pkg/spreadsheet"
)

const (
	headerStudentID = "student id"
	headerFullName  = "full name"
	headerGrade     = "grade"
)

// RosterService manages the roster, per-composition grades and gradebook export.
type RosterService struct {
	access    classroomAccess
	gradebook gradebookStore
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(classrooms classroomFinder, memberships membershipFinder, gradebook gradebookStore, metrics *MetricsService, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		access:    classroomAccess{classrooms: classrooms, memberships: memberships},
		gradebook: gradebook,
		metrics:   metrics,
		logger:    logger,
	}
}

// ListRoster returns the full roster to staff and only the caller's own entry to students.
func (s *RosterService) ListRoster(ctx context.Context, actor Actor, classroomID string) ([]models.StudentListEntry, error) {
	scope, staff, err := s.rosterScope(ctx, actor, classroomID)
	if err != nil {
		return nil, err
	}
	if !staff {
		entry, err := s.gradebook.FindEntry(ctx, classroomID, scope.Membership.StudentIDValue())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return []models.StudentListEntry{}, nil
			}
			return nil, internalError(err, "failed to load roster entry")
		}
		return []models.StudentListEntry{*entry}, nil
	}
	entries, err := s.gradebook.ListRoster(ctx, classroomID)
	if err != nil {
		return nil, internalError(err, "failed to list roster")
	}
	return entries, nil
}

// GetEntry returns one roster entry. Students may only read their own.
func (s *RosterService) GetEntry(ctx context.Context, actor Actor, classroomID, studentID string) (*models.StudentListEntry, error) {
	scope, staff, err := s.rosterScope(ctx, actor, classroomID)
	if err != nil {
		return nil, err
	}
	if !staff && scope.Membership.StudentIDValue() != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in roster")
	}
	entry, err := s.gradebook.FindEntry(ctx, classroomID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in roster")
		}
		return nil, internalError(err, "failed to load roster entry")
	}
	return entry, nil
}

// UploadRoster upserts roster rows from a sheet with "student id" and "full name" columns.
func (s *RosterService) UploadRoster(ctx context.Context, actor Actor, classroomID string, rows [][]string) (*dto.UploadResult, error) {
	if _, _, err := s.access.require(ctx, actor, classroomID, ActionUploadRoster); err != nil {
		return nil, err
	}
	columns, err := requireColumns(rows, headerStudentID, headerFullName)
	if err != nil {
		return nil, err
	}
	result := &dto.UploadResult{}
	order := []string{}
	byStudent := map[string]*models.StudentListEntry{}
	for _, row := range rows[1:] {
		result.Rows++
		studentID := spreadsheet.Cell(row, columns[headerStudentID])
		if studentID == "" {
			continue
		}
		if _, seen := byStudent[studentID]; !seen {
			order = append(order, studentID)
		}
		byStudent[studentID] = &models.StudentListEntry{
			ClassroomID: classroomID,
			StudentID:   studentID,
			FullName:    spreadsheet.Cell(row, columns[headerFullName]),
		}
	}
	err = s.gradebook.InTx(ctx, func(ctx context.Context, tx repository.Gradebook) error {
		for _, studentID := range order {
			if err := tx.UpsertEntry(ctx, byStudent[studentID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to upload roster")
	}
	result.Upserted = len(order)
	result.Skipped = result.Rows - len(order)
	return result, nil
}

// UploadGrades writes one composition's grades from a sheet with "student id" and "grade" columns.
// Every cell is validated before the first write; the whole upload is one transaction.
func (s *RosterService) UploadGrades(ctx context.Context, actor Actor, classroomID, gradeName string, rows [][]string) (*dto.UploadResult, error) {
	scope, _, err := s.access.require(ctx, actor, classroomID, ActionEditGrades)
	if err != nil {
		return nil, err
	}
	structure, composition, err := compositionOf(scope.Classroom, gradeName)
	if err != nil {
		return nil, err
	}
	columns, err := requireColumns(rows, headerStudentID, headerGrade)
	if err != nil {
		return nil, err
	}

	type gradeRow struct {
		line      int
		studentID string
		value     string
	}
	result := &dto.UploadResult{}
	var parsed []gradeRow
	for i, row := range rows[1:] {
		result.Rows++
		line := i + 2
		studentID := spreadsheet.Cell(row, columns[headerStudentID])
		value := spreadsheet.Cell(row, columns[headerGrade])
		if studentID == "" || value == "" {
			result.Skipped++
			continue
		}
		if err := ValidateGradeValue(value, structure.Total); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: %s", line, appErrors.FromError(err).Message))
		}
		parsed = append(parsed, gradeRow{line: line, studentID: studentID, value: value})
	}

	changed := 0
	err = s.gradebook.InTx(ctx, func(ctx context.Context, tx repository.Gradebook) error {
		entries, err := tx.ListRoster(ctx, classroomID)
		if err != nil {
			return err
		}
		byStudent := make(map[string]*models.StudentListEntry, len(entries))
		for i := range entries {
			byStudent[entries[i].StudentID] = &entries[i]
		}
		for _, row := range parsed {
			if _, ok := byStudent[row.studentID]; !ok {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("row %d: student %q not found in roster", row.line, row.studentID))
			}
		}
		touched := map[string]*models.StudentListEntry{}
		for _, row := range parsed {
			entry := byStudent[row.studentID]
			grade := setGrade(entry, composition.Name, row.value)
			if err := tx.UpsertGrade(ctx, grade); err != nil {
				return err
			}
			touched[entry.ID] = entry
		}
		for _, entry := range touched {
			total, dirty := RecomputeTotal(entry, structure)
			if !dirty {
				continue
			}
			if err := tx.UpdateTotal(ctx, entry.ID, total); err != nil {
				return err
			}
			entry.Total = total
			changed++
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, internalError(err, "failed to upload grades")
	}
	s.metrics.TotalsUpdated(changed)
	result.Upserted = len(parsed)
	result.TotalsChanged = changed
	return result, nil
}

// UpdateGrade sets one composition grade of one student and recomputes their total.
func (s *RosterService) UpdateGrade(ctx context.Context, actor Actor, classroomID, studentID, gradeName string, req dto.UpdateGradeRequest) (*models.StudentListEntry, error) {
	scope, _, err := s.access.require(ctx, actor, classroomID, ActionEditGrades)
	if err != nil {
		return nil, err
	}
	structure, composition, err := compositionOf(scope.Classroom, gradeName)
	if err != nil {
		return nil, err
	}
	value := strings.TrimSpace(req.Value)
	if err := ValidateGradeValue(value, structure.Total); err != nil {
		return nil, err
	}
	entry, err := s.gradebook.FindEntry(ctx, classroomID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in roster")
		}
		return nil, internalError(err, "failed to load roster entry")
	}
	grade := setGrade(entry, composition.Name, value)
	total, dirty := RecomputeTotal(entry, structure)
	err = s.gradebook.InTx(ctx, func(ctx context.Context, tx repository.Gradebook) error {
		if err := tx.UpsertGrade(ctx, grade); err != nil {
			return err
		}
		if dirty {
			return tx.UpdateTotal(ctx, entry.ID, total)
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to update grade")
	}
	if dirty {
		s.metrics.TotalsUpdated(1)
		entry.Total = total
	}
	return entry, nil
}

// Export renders the gradebook: student id, full name, one column per composition, total.
func (s *RosterService) Export(ctx context.Context, actor Actor, classroomID string, format dto.ExportFormat) (*dto.ExportFile, error) {
	scope, _, err := s.access.require(ctx, actor, classroomID, ActionExportGradebook)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	entries, err := s.gradebook.ListRoster(ctx, classroomID)
	if err != nil {
		return nil, internalError(err, "failed to list roster")
	}
	table := gradebookTable(scope.Classroom, entries)

	file := &dto.ExportFile{Filename: fmt.Sprintf("gradebook-%s.%s", scope.Classroom.Code, format)}
	switch format {
	case dto.ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = export.RenderPDF(table)
	default:
		file.ContentType = "text/csv"
		file.Data, err = export.RenderCSV(table)
	}
	if err != nil {
		return nil, internalError(err, "failed to render gradebook")
	}
	return file, nil
}

func (s *RosterService) rosterScope(ctx context.Context, actor Actor, classroomID string) (ClassroomScope, bool, error) {
	scope, err := s.access.scope(ctx, actor, classroomID)
	if err != nil {
		return scope, false, err
	}
	if Authorize(actor, scope, ActionViewRoster).Allowed {
		return scope, true, nil
	}
	if err := Authorize(actor, scope, ActionViewOwnRosterEntry).Err(); err != nil {
		return scope, false, err
	}
	if err := RequireStudentID(scope.Membership); err != nil {
		return scope, false, err
	}
	return scope, false, nil
}

func gradebookTable(classroom *models.Classroom, entries []models.StudentListEntry) export.Table {
	var names []string
	if classroom.GradeStructure != nil {
		names = classroom.GradeStructure.Names()
	}
	headers := append([]string{"Student ID", "Full Name"}, names...)
	headers = append(headers, "Total")
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		values := make(map[string]string, len(entry.Grades))
		for _, grade := range entry.Grades {
			values[grade.Name] = grade.Value
		}
		row := []string{entry.StudentID, entry.FullName}
		for _, name := range names {
			row = append(row, values[name])
		}
		row = append(row, entry.Total)
		rows = append(rows, row)
	}
	return export.Table{Title: classroom.Name + " gradebook", Headers: headers, Rows: rows}
}

func compositionOf(classroom *models.Classroom, gradeName string) (*models.GradeStructure, models.GradeComposition, error) {
	structure := classroom.GradeStructure
	if structure == nil {
		return nil, models.GradeComposition{}, appErrors.Clone(appErrors.ErrStructureMissing, "")
	}
	composition, ok := structure.Composition(strings.TrimSpace(gradeName))
	if !ok {
		return nil, models.GradeComposition{}, appErrors.Clone(appErrors.ErrNotFound, "grade composition not found")
	}
	return structure, composition, nil
}

func requireColumns(rows [][]string, names ...string) (map[string]int, error) {
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no header row")
	}
	columns := spreadsheet.Columns(rows[0])
	for _, name := range names {
		if _, ok := columns[name]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing %q column", name))
		}
	}
	return columns, nil
}

// setGrade writes value into the entry's grade for name, creating it lazily, and returns it.
func setGrade(entry *models.StudentListEntry, name, value string) *models.Grade {
	if grade := findGrade(entry.Grades, name); grade != nil {
		grade.Value = value
		return grade
	}
	entry.Grades = append(entry.Grades, models.Grade{StudentListID: entry.ID, Name: name, Value: value})
	return &entry.Grades[len(entry.Grades)-1]
}
