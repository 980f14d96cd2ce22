package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-grading-api/internal/models"
)

func newMembershipRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMembershipRepositoryListByClassroomWithRoles(t *testing.T) {
	db, mock, cleanup := newMembershipRepoMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+membershipColumns+" FROM memberships WHERE classroom_id = ? AND role IN (?, ?) ORDER BY created_at")).
		WithArgs("c1", "TEACHER", "STUDENT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "classroom_id", "user_id", "role", "student_id", "created_at"}).
			AddRow("m1", "c1", "u1", "TEACHER", nil, now).
			AddRow("m2", "c1", "u2", "STUDENT", "S-01", now))

	members, err := repo.ListByClassroom(context.Background(), "c1", models.ClassroomRoleTeacher, models.ClassroomRoleStudent)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.False(t, members[0].HasStudentID())
	assert.Equal(t, "S-01", members[1].StudentIDValue())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepositoryListByClassroomAllRoles(t *testing.T) {
	db, mock, cleanup := newMembershipRepoMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM memberships WHERE classroom_id = ? ORDER BY created_at")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "classroom_id", "user_id", "role", "student_id", "created_at"}))

	members, err := repo.ListByClassroom(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepositoryFindNotFound(t *testing.T) {
	db, mock, cleanup := newMembershipRepoMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM memberships WHERE classroom_id = $1 AND user_id = $2")).
		WithArgs("c1", "u9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "c1", "u9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepositoryListMembers(t *testing.T) {
	db, mock, cleanup := newMembershipRepoMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = m.user_id")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "classroom_id", "user_id", "role", "student_id", "created_at", "email", "full_name"}).
			AddRow("m1", "c1", "u2", "STUDENT", "S-01", time.Now(), "s@example.com", "Student One"))

	members, err := repo.ListMembers(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Student One", members[0].FullName)
	assert.Equal(t, models.ClassroomRoleStudent, members[0].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepositoryCreateDeleteUpdate(t *testing.T) {
	db, mock, cleanup := newMembershipRepoMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectExec("INSERT INTO memberships").
		WithArgs(sqlmock.AnyArg(), "c1", "u2", "STUDENT", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	membership := &models.Membership{ClassroomID: "c1", UserID: "u2", Role: models.ClassroomRoleStudent}
	require.NoError(t, repo.Create(context.Background(), membership))
	assert.NotEmpty(t, membership.ID)

	studentID := "S-02"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE memberships SET student_id = $2 WHERE id = $1")).
		WithArgs(membership.ID, "S-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStudentID(context.Background(), membership.ID, &studentID))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM memberships WHERE classroom_id = $1 AND user_id = $2")).
		WithArgs("c1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "c1", "u2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
