package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

func TestAcademicAPI_groupLifecycle(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/v1/levels", f.admin, academic.NewLevel{Name: "Bachillerato", Order: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lvl academic.Level
	decode(t, rec, &lvl)

	rec = f.do(t, http.MethodPost, "/v1/groups", f.admin, academic.NewGroup{
		Name: "1º Bach A", LevelID: lvl.ID, AcademicYear: "2024-2025", MaxCapacity: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grp academic.Group
	decode(t, rec, &grp)
	assert.Zero(t, grp.CurrentCapacity)

	rec = f.do(t, http.MethodPost, "/v1/users", f.admin, user.NewUser{
		Name: "Irene Ruiz", Email: "irene@demo.school", Roles: []string{user.RoleStudent},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var student user.User
	decode(t, rec, &student)

	studentsPath := "/v1/groups/" + grp.ID + "/students"
	runHTTPTests(t, f, []httpTest{
		{name: "assign", method: http.MethodPost, path: studentsPath, token: f.admin, body: AssignRequest{StudentID: student.ID}, wantCode: http.StatusCreated},
		{name: "assign again", method: http.MethodPost, path: studentsPath, token: f.admin, body: AssignRequest{StudentID: student.ID}, wantCode: http.StatusConflict},
		{name: "assign no student", method: http.MethodPost, path: studentsPath, token: f.admin, body: AssignRequest{}, wantCode: http.StatusBadRequest},
		{name: "assign unknown group", method: http.MethodPost, path: "/v1/groups/nope/students", token: f.admin, body: AssignRequest{StudentID: student.ID}, wantCode: http.StatusNotFound},
		{name: "delete non empty", method: http.MethodDelete, path: "/v1/groups/" + grp.ID, token: f.admin, wantCode: http.StatusConflict},
		{name: "level groups", method: http.MethodGet, path: "/v1/levels/" + lvl.ID + "/groups", token: f.student, wantCode: http.StatusOK},
	})

	rec = f.do(t, http.MethodGet, studentsPath, f.tutor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ids []string
	decode(t, rec, &ids)
	assert.Equal(t, []string{student.ID}, ids)

	// a full group is no longer available
	rec = f.do(t, http.MethodGet, "/v1/groups?status=available&level_id="+lvl.ID, f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []academic.Group
	decode(t, rec, &groups)
	assert.Empty(t, groups)

	rec = f.do(t, http.MethodDelete, studentsPath+"/"+student.ID, f.admin, ReasonRequest{Reason: "baja"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/assignments?active=false&student_id="+student.ID, f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var asgs []academic.GroupAssignment
	decode(t, rec, &asgs)
	require.Len(t, asgs, 1)
	assert.False(t, asgs[0].IsActive)

	runHTTPTests(t, f, []httpTest{
		{name: "archive", method: http.MethodPost, path: "/v1/groups/" + grp.ID + "/archive", token: f.admin, wantCode: http.StatusOK},
		{name: "archive twice", method: http.MethodPost, path: "/v1/groups/" + grp.ID + "/archive", token: f.admin, wantCode: http.StatusOK},
		{name: "assign archived", method: http.MethodPost, path: studentsPath, token: f.admin, body: AssignRequest{StudentID: student.ID}, wantCode: http.StatusConflict},
		{name: "unarchive", method: http.MethodPost, path: "/v1/groups/" + grp.ID + "/unarchive", token: f.admin, wantCode: http.StatusOK},
		{name: "delete", method: http.MethodDelete, path: "/v1/groups/" + grp.ID + "?reason=cierre", token: f.admin, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: "/v1/groups/" + grp.ID, token: f.admin, wantCode: http.StatusNotFound},
	})
}

func TestAcademicAPI_enrollments(t *testing.T) {
	f := setup(t)
	sub := f.demo.Subject
	student := f.demo.Students[0]
	secA, secB := sub.Groups[0], sub.Groups[1]

	seats := func(t *testing.T) (int, int) {
		t.Helper()
		rec := f.do(t, http.MethodGet, "/v1/subjects/"+sub.ID, f.student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got academic.Subject
		decode(t, rec, &got)
		return got.Groups[0].CurrentStudents, got.Groups[1].CurrentStudents
	}
	a, b := seats(t)
	require.Equal(t, 3, a)
	require.Equal(t, 3, b)

	t.Run("change level", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/enrollments/change-level", f.admin, ChangeLevelRequest{
			StudentID: student.ID, SubjectID: sub.ID, LevelID: secB.LevelID, GroupID: secB.ID, Reason: "promoción",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var enr academic.Enrollment
		decode(t, rec, &enr)
		assert.Equal(t, secB.ID, enr.GroupID)

		a, b := seats(t)
		assert.Equal(t, 2, a)
		assert.Equal(t, 4, b)
	})

	t.Run("transfer", func(t *testing.T) {
		runHTTPTests(t, f, []httpTest{
			{
				name: "wrong origin", method: http.MethodPost, path: "/v1/enrollments/transfer", token: f.admin,
				body:     TransferRequest{StudentID: student.ID, FromGroupID: secA.ID, ToSubjectID: sub.ID, ToLevelID: secA.LevelID, ToGroupID: secA.ID},
				wantCode: http.StatusConflict,
			},
			{
				name: "missing fields", method: http.MethodPost, path: "/v1/enrollments/transfer", token: f.admin,
				body: TransferRequest{StudentID: student.ID}, wantCode: http.StatusBadRequest,
			},
			{
				name: "back", method: http.MethodPost, path: "/v1/enrollments/transfer", token: f.admin,
				body:     TransferRequest{StudentID: student.ID, FromGroupID: secB.ID, ToSubjectID: sub.ID, ToLevelID: secA.LevelID, ToGroupID: secA.ID},
				wantCode: http.StatusOK,
			},
		})
		a, b := seats(t)
		assert.Equal(t, 3, a)
		assert.Equal(t, 3, b)
	})

	t.Run("progress", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/enrollments?student_id="+student.ID+"&status=active", f.tutor, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var enrs []academic.Enrollment
		decode(t, rec, &enrs)
		require.Len(t, enrs, 1)
		path := "/v1/enrollments/" + enrs[0].ID

		grade, badGrade := 8.5, 11.0
		runHTTPTests(t, f, []httpTest{
			{name: "student", method: http.MethodPatch, path: path, token: f.student, body: academic.ProgressPatch{Grade: &grade}, wantCode: http.StatusForbidden},
			{name: "other section teacher", method: http.MethodPatch, path: path, token: f.token(t, f.demo.Tutors[1]), body: academic.ProgressPatch{Grade: &grade}, wantCode: http.StatusForbidden},
			{name: "unknown enrollment", method: http.MethodPatch, path: "/v1/enrollments/nope", token: f.tutor, body: academic.ProgressPatch{Grade: &grade}, wantCode: http.StatusNotFound},
			{name: "admin", method: http.MethodPatch, path: path, token: f.admin, body: academic.ProgressPatch{Grade: &badGrade}, wantCode: http.StatusBadRequest},
			{name: "out of range", method: http.MethodPatch, path: path, token: f.tutor, body: academic.ProgressPatch{Grade: &badGrade}, wantCode: http.StatusBadRequest},
			{name: "grade", method: http.MethodPatch, path: path, token: f.tutor, body: academic.ProgressPatch{Grade: &grade}, wantCode: http.StatusOK},
		})

		got, err := f.eng.GetEnrollment(enrs[0].ID)
		require.NoError(t, err)
		require.NotNil(t, got.Grade)
		assert.Equal(t, grade, *got.Grade)
	})

	t.Run("drop and enroll", func(t *testing.T) {
		runHTTPTests(t, f, []httpTest{
			{
				name: "drop", method: http.MethodPost, path: "/v1/enrollments/drop", token: f.admin,
				body: DropRequest{StudentID: student.ID, SubjectID: sub.ID, Reason: "cambio"}, wantCode: http.StatusNoContent,
			},
			{
				name: "drop twice", method: http.MethodPost, path: "/v1/enrollments/drop", token: f.admin,
				body: DropRequest{StudentID: student.ID, SubjectID: sub.ID}, wantCode: http.StatusConflict,
			},
			{
				name: "enroll", method: http.MethodPost, path: "/v1/enrollments", token: f.admin,
				body:     EnrollRequest{StudentID: student.ID, SubjectID: sub.ID, LevelID: secA.LevelID, GroupID: secA.ID},
				wantCode: http.StatusCreated,
			},
			{
				name: "enroll twice", method: http.MethodPost, path: "/v1/enrollments", token: f.admin,
				body:     EnrollRequest{StudentID: student.ID, SubjectID: sub.ID, LevelID: secA.LevelID, GroupID: secA.ID},
				wantCode: http.StatusConflict,
			},
			{
				name: "enroll unknown section", method: http.MethodPost, path: "/v1/enrollments", token: f.admin,
				body:     EnrollRequest{StudentID: f.demo.Students[1].ID, SubjectID: sub.ID, LevelID: secA.LevelID, GroupID: "nope"},
				wantCode: http.StatusNotFound,
			},
		})

		rec := f.do(t, http.MethodGet, "/v1/enrollments?status=dropped", f.admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var enrs []academic.Enrollment
		decode(t, rec, &enrs)
		require.Len(t, enrs, 1)
		assert.Equal(t, student.ID, enrs[0].StudentID)
	})
}
