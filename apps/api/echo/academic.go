package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
)

type academicApi struct {
	eng      *academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, eng *academic.Service, validate *validator.Validate) {
	api := academicApi{eng: eng, validate: validate}
	admin := adminMiddleware()

	lg := g.Group("/levels")
	lg.GET("", api.queryLevels)
	lg.POST("", api.createLevel, admin)
	lg.GET("/:id", api.retrieveLevel)
	lg.PATCH("/:id", api.updateLevel, admin)
	lg.GET("/:id/groups", api.queryLevelGroups)

	gg := g.Group("/groups")
	gg.GET("", api.queryGroups)
	gg.POST("", api.createGroup, admin)
	gg.GET("/:id", api.retrieveGroup)
	gg.PATCH("/:id", api.updateGroup, admin)
	gg.DELETE("/:id", api.destroyGroup, admin)
	gg.POST("/:id/archive", api.archiveGroup, admin)
	gg.POST("/:id/unarchive", api.unarchiveGroup, admin)
	gg.GET("/:id/students", api.queryGroupStudents)
	gg.POST("/:id/students", api.assignStudent, admin)
	gg.DELETE("/:id/students/:studentId", api.removeStudent, admin)

	g.GET("/assignments", api.queryAssignments)

	sg := g.Group("/subjects")
	sg.GET("", api.querySubjects)
	sg.POST("", api.createSubject, admin)
	sg.GET("/:id", api.retrieveSubject)
	sg.PATCH("/:id", api.updateSubject, admin)
	sg.POST("/:id/levels", api.addSubjectLevel, admin)
	sg.POST("/:id/groups", api.addSubjectGroup, admin)

	eg := g.Group("/enrollments")
	eg.GET("", api.queryEnrollments)
	eg.POST("", api.enroll, admin)
	eg.POST("/drop", api.drop, admin)
	eg.POST("/transfer", api.transfer, admin)
	eg.POST("/change-level", api.changeLevel, admin)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.PATCH("/:id", api.updateProgress, staffMiddleware)
}

// bindReason reads an optional {"reason": ...} body, falling back on ?reason=.
func bindReason(ctx echo.Context) (string, error) {
	var data ReasonRequest
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(&data); err != nil {
			return "", errors.Wrap(err, "binding to ReasonRequest")
		}
	}
	if data.Reason == "" {
		data.Reason = ctx.QueryParam("reason")
	}
	return core.CleanString(data.Reason), nil
}

// Levels

func (api *academicApi) queryLevels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.eng.ListLevels())
}

func (api *academicApi) createLevel(ctx echo.Context) error {
	var data academic.NewLevel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLevel")
	}
	lvl, err := api.eng.AddLevel(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating level")
	}
	return ctx.JSON(http.StatusCreated, lvl)
}

func (api *academicApi) retrieveLevel(ctx echo.Context) error {
	lvl, err := api.eng.GetLevel(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lvl)
}

func (api *academicApi) updateLevel(ctx echo.Context) error {
	var data academic.LevelPatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LevelPatch")
	}
	lvl, err := api.eng.UpdateLevel(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating level")
	}
	return ctx.JSON(http.StatusOK, lvl)
}

func (api *academicApi) queryLevelGroups(ctx echo.Context) error {
	if _, err := api.eng.GetLevel(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.eng.ListGroupsByLevel(ctx.Param("id")))
}

// Groups

// queryGroups supports ?status=available|active|archived, ?level_id= and ?tutor_id=.
func (api *academicApi) queryGroups(ctx echo.Context) error {
	var groups []academic.Group
	switch ctx.QueryParam("status") {
	case "available":
		groups = api.eng.GetAvailableGroups()
	case "active":
		groups = api.eng.GetActiveGroups()
	case "archived":
		groups = api.eng.GetArchivedGroups()
	case "":
		groups = api.eng.ListGroups()
	default:
		return core.NewFieldError("status", "must be one of available, active or archived")
	}

	levelID, tutorID := ctx.QueryParam("level_id"), ctx.QueryParam("tutor_id")
	filtered := make([]academic.Group, 0, len(groups))
	for _, grp := range groups {
		if (levelID == "" || grp.LevelID == levelID) && (tutorID == "" || grp.TutorID == tutorID) {
			filtered = append(filtered, grp)
		}
	}
	return ctx.JSON(http.StatusOK, filtered)
}

func (api *academicApi) createGroup(ctx echo.Context) error {
	var data academic.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	grp, err := api.eng.AddGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *academicApi) retrieveGroup(ctx echo.Context) error {
	grp, err := api.eng.GetGroup(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *academicApi) updateGroup(ctx echo.Context) error {
	var data academic.GroupPatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GroupPatch")
	}
	grp, err := api.eng.UpdateGroup(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *academicApi) destroyGroup(ctx echo.Context) error {
	reason, err := bindReason(ctx)
	if err != nil {
		return err
	}
	if err = api.eng.DeleteGroup(ctx.Request().Context(), ctx.Param("id"), reason); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicApi) archiveGroup(ctx echo.Context) error {
	reason, err := bindReason(ctx)
	if err != nil {
		return err
	}
	if err = api.eng.ArchiveGroup(ctx.Request().Context(), ctx.Param("id"), reason); err != nil {
		return errors.Wrap(err, "archiving group")
	}
	return api.retrieveGroup(ctx)
}

func (api *academicApi) unarchiveGroup(ctx echo.Context) error {
	reason, err := bindReason(ctx)
	if err != nil {
		return err
	}
	if err = api.eng.UnarchiveGroup(ctx.Request().Context(), ctx.Param("id"), reason); err != nil {
		return errors.Wrap(err, "unarchiving group")
	}
	return api.retrieveGroup(ctx)
}

func (api *academicApi) queryGroupStudents(ctx echo.Context) error {
	ids, err := api.eng.GetStudentsByGroup(ctx.Param("id"))
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, ids)
}

func (api *academicApi) assignStudent(ctx echo.Context) error {
	var data AssignRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	asg, err := api.eng.AssignStudentToGroup(ctx.Request().Context(), data.StudentID, ctx.Param("id"), data.Notes)
	if err != nil {
		return errors.Wrap(err, "assigning student")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *academicApi) removeStudent(ctx echo.Context) error {
	reason, err := bindReason(ctx)
	if err != nil {
		return err
	}
	err = api.eng.RemoveStudentFromGroup(ctx.Request().Context(), ctx.Param("studentId"), ctx.Param("id"), reason)
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// queryAssignments supports ?student_id= and ?active=true.
func (api *academicApi) queryAssignments(ctx echo.Context) error {
	var activeOnly bool
	if v := ctx.QueryParam("active"); v != "" {
		var err error
		if activeOnly, err = strconv.ParseBool(v); err != nil {
			return core.NewFieldError("active", "must be a boolean")
		}
	}
	return ctx.JSON(http.StatusOK, api.eng.ListAssignments(ctx.QueryParam("student_id"), activeOnly))
}

// Subjects

func (api *academicApi) querySubjects(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.eng.ListSubjects())
}

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	sub, err := api.eng.AddSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *academicApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.eng.GetSubject(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *academicApi) updateSubject(ctx echo.Context) error {
	var data academic.SubjectPatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectPatch")
	}
	sub, err := api.eng.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *academicApi) addSubjectLevel(ctx echo.Context) error {
	var data academic.NewSubjectLevel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubjectLevel")
	}
	sub, err := api.eng.AddSubjectLevel(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding subject level")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *academicApi) addSubjectGroup(ctx echo.Context) error {
	var data academic.NewSubjectGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubjectGroup")
	}
	sg, err := api.eng.AddSubjectGroup(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding subject group")
	}
	return ctx.JSON(http.StatusCreated, sg)
}

// Enrollments

func (api *academicApi) queryEnrollments(ctx echo.Context) error {
	filter := academic.EnrollmentFilter{
		StudentID: ctx.QueryParam("student_id"),
		SubjectID: ctx.QueryParam("subject_id"),
		GroupID:   ctx.QueryParam("group_id"),
		Status:    academic.EnrollmentStatus(ctx.QueryParam("status")),
	}
	return ctx.JSON(http.StatusOK, api.eng.ListEnrollments(filter))
}

func (api *academicApi) retrieveEnrollment(ctx echo.Context) error {
	enr, err := api.eng.GetEnrollment(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *academicApi) enroll(ctx echo.Context) error {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	enr, err := api.eng.EnrollStudent(ctx.Request().Context(), data.StudentID, data.SubjectID, data.LevelID, data.GroupID, data.Notes)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *academicApi) drop(ctx echo.Context) error {
	var data DropRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DropRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.eng.RemoveStudent(ctx.Request().Context(), data.StudentID, data.SubjectID, data.Reason); err != nil {
		return errors.Wrap(err, "dropping student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicApi) transfer(ctx echo.Context) error {
	var data TransferRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransferRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	enr, err := api.eng.TransferStudent(ctx.Request().Context(),
		data.StudentID, data.FromGroupID, data.ToSubjectID, data.ToLevelID, data.ToGroupID, data.Reason)
	if err != nil {
		return errors.Wrap(err, "transferring student")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *academicApi) changeLevel(ctx echo.Context) error {
	var data ChangeLevelRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeLevelRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	enr, err := api.eng.ChangeLevelStudent(ctx.Request().Context(),
		data.StudentID, data.SubjectID, data.LevelID, data.GroupID, data.Reason)
	if err != nil {
		return errors.Wrap(err, "changing student level")
	}
	return ctx.JSON(http.StatusOK, enr)
}

// updateProgress is open to admins and to the teacher of the enrollment's subject group.
func (api *academicApi) updateProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin {
		if err = api.checkSectionTeacher(ctx.Param("id"), claims.Subject); err != nil {
			return err
		}
	}

	var data academic.ProgressPatch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressPatch")
	}
	enr, err := api.eng.UpdateEnrollmentProgress(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment progress")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *academicApi) checkSectionTeacher(enrollmentID, teacherID string) error {
	enr, err := api.eng.GetEnrollment(enrollmentID)
	if err != nil {
		return errors.Wrap(err, "retrieving enrollment")
	}
	sub, err := api.eng.GetSubject(enr.SubjectID)
	if err != nil {
		return errors.Wrap(err, "retrieving subject")
	}
	if sg, ok := sub.Group(enr.GroupID); !ok || sg.TeacherID != teacherID {
		return errHttpForbidden
	}
	return nil
}
