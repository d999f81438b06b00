package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type scoreApi struct {
	svc       grading.ServiceInterface
	schoolSvc school.ServiceInterface
	enrollSvc enrollment.ServiceInterface
}

func registerScoreAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := scoreApi{
		svc:       deps.GradingSvc,
		schoolSvc: deps.SchoolSvc,
		enrollSvc: deps.EnrollSvc,
	}

	sg := g.Group("/scores", jwt)
	sg.POST("", api.record, requirePermission(user.PermRecordScores))
	sg.GET("", api.query, requirePermission(user.PermViewReports))
}

// checkAssignment lets teachers record scores only for the classes & subjects they are assigned to.
func (api *scoreApi) checkAssignment(ctx echo.Context, claims Claims, ns grading.NewScore) error {
	if claims.Can(user.PermRecordAnyScore) {
		return nil
	}
	stu, err := api.enrollSvc.GetStudent(ctx.Request().Context(), ns.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if !stu.IsPlaced() {
		return errHttpForbidden
	}
	assigned, err := api.schoolSvc.IsAssigned(ctx.Request().Context(), claims.Subject, ns.SubjectID, stu.ClassID)
	if err != nil {
		return errors.Wrap(err, "checking teaching assignment")
	}
	if !assigned {
		return errHttpForbidden
	}
	return nil
}

// Handlers

func (api *scoreApi) record(ctx echo.Context) error {
	var data grading.NewScore
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScore")
	}
	if err := data.Check(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.checkAssignment(ctx, claims, data); err != nil {
		return err
	}

	score, err := api.svc.RecordScore(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording score")
	}
	return ctx.JSON(http.StatusCreated, score)
}

func (api *scoreApi) query(ctx echo.Context) error {
	var filter grading.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []grading.Score{})
	}
	if typ := ctx.QueryParam("type"); typ != "" {
		st, err := grading.ParseScoreType(typ)
		if err != nil {
			return err
		}
		filter.Type = st
	}

	scores, err := api.svc.QueryScores(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []grading.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}
