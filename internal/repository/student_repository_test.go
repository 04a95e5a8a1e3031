package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRepositoryListCohort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "parent_id", "parent_name", "parent_email"}).
		AddRow("stu-1", "Student One", "par-1", "Parent One", "one@example.com").
		AddRow("stu-1", "Student One", "par-2", "Parent Two", "two@example.com")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.grade = $1 AND s.active = TRUE AND u.active = TRUE")).
		WithArgs("10").
		WillReturnRows(rows)

	members, err := repo.ListCohort(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "par-1", members[0].ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryIsParentOf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM student_parents")).
		WithArgs("par-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	linked, err := repo.IsParentOf(context.Background(), "par-1", "stu-1")
	require.NoError(t, err)
	assert.True(t, linked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
