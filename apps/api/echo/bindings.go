package echoapi

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

type (
	AssignRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		Notes     string `json:"notes"`
	}

	ReasonRequest struct {
		Reason string `json:"reason"`
	}

	EnrollRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		SubjectID string `json:"subject_id" validate:"required"`
		LevelID   string `json:"level_id" validate:"required"`
		GroupID   string `json:"group_id" validate:"required"`
		Notes     string `json:"notes"`
	}

	DropRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		SubjectID string `json:"subject_id" validate:"required"`
		Reason    string `json:"reason"`
	}

	TransferRequest struct {
		StudentID   string `json:"student_id" validate:"required"`
		FromGroupID string `json:"from_group_id" validate:"required"`
		ToSubjectID string `json:"to_subject_id" validate:"required"`
		ToLevelID   string `json:"to_level_id" validate:"required"`
		ToGroupID   string `json:"to_group_id" validate:"required"`
		Reason      string `json:"reason"`
	}

	ChangeLevelRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		SubjectID string `json:"subject_id" validate:"required"`
		LevelID   string `json:"level_id" validate:"required"`
		GroupID   string `json:"group_id" validate:"required"`
		Reason    string `json:"reason"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

func (r *AssignRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.Notes = core.CleanString(r.Notes)
	return validate.Struct(r)
}

func (r *EnrollRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.SubjectID = core.CleanString(r.SubjectID)
	r.LevelID = core.CleanString(r.LevelID)
	r.GroupID = core.CleanString(r.GroupID)
	r.Notes = core.CleanString(r.Notes)
	return validate.Struct(r)
}

func (r *DropRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.SubjectID = core.CleanString(r.SubjectID)
	r.Reason = core.CleanString(r.Reason)
	return validate.Struct(r)
}

func (r *TransferRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.FromGroupID = core.CleanString(r.FromGroupID)
	r.ToSubjectID = core.CleanString(r.ToSubjectID)
	r.ToLevelID = core.CleanString(r.ToLevelID)
	r.ToGroupID = core.CleanString(r.ToGroupID)
	r.Reason = core.CleanString(r.Reason)
	return validate.Struct(r)
}

func (r *ChangeLevelRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	r.SubjectID = core.CleanString(r.SubjectID)
	r.LevelID = core.CleanString(r.LevelID)
	r.GroupID = core.CleanString(r.GroupID)
	r.Reason = core.CleanString(r.Reason)
	return validate.Struct(r)
}

// bindHistoryFilter reads ?student_id=&type=&from=&to=&limit= (RFC 3339 times).
func bindHistoryFilter(ctx echo.Context, validate *validator.Validate) (history.Filter, error) {
	filter := history.Filter{
		StudentID: ctx.QueryParam("student_id"),
		Type:      history.Type(ctx.QueryParam("type")),
	}
	var err error
	if v := ctx.QueryParam("from"); v != "" {
		if filter.From, err = time.Parse(time.RFC3339, v); err != nil {
			return filter, core.NewFieldError("from", "must be an RFC 3339 time")
		}
	}
	if v := ctx.QueryParam("to"); v != "" {
		if filter.To, err = time.Parse(time.RFC3339, v); err != nil {
			return filter, core.NewFieldError("to", "must be an RFC 3339 time")
		}
	}
	if v := ctx.QueryParam("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, core.NewFieldError("limit", "must be a number")
		}
	}
	filter.Clean()
	return filter, validate.Struct(filter)
}
