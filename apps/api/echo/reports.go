package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

type reportApi struct {
	eng      *academic.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

// TutorResponse is a teacher with the academic groups they tutor.
type TutorResponse struct {
	user.User
	Groups []academic.Group `json:"groups"`
}

func registerReportAPI(g *echo.Group, eng *academic.Service, usrSvc *user.Service, validate *validator.Validate) {
	api := reportApi{eng: eng, usrSvc: usrSvc, validate: validate}

	g.GET("/dashboard", api.dashboard, staffMiddleware)
	g.GET("/history", api.history, staffMiddleware)
	g.GET("/tutors", api.tutors, staffMiddleware)
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.eng.Dashboard())
}

func (api *reportApi) history(ctx echo.Context) error {
	filter, err := bindHistoryFilter(ctx, api.validate)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.eng.History(filter))
}

func (api *reportApi) tutors(ctx echo.Context) error {
	active := true
	teachers, err := api.usrSvc.Query(ctx.Request().Context(), user.QueryFilter{Roles: user.TeacherRoles, IsActive: &active})
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	res := make([]TutorResponse, 0, len(teachers))
	for _, t := range teachers {
		res = append(res, TutorResponse{User: t, Groups: api.eng.ListGroupsByTutor(t.ID)})
	}
	return ctx.JSON(http.StatusOK, res)
}
