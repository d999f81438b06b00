package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type schoolApi struct {
	svc       school.ServiceInterface
	usrSvc    user.ServiceInterface
	enrollSvc enrollment.ServiceInterface
	validate  *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{
		svc:       deps.SchoolSvc,
		usrSvc:    deps.UserSvc,
		enrollSvc: deps.EnrollSvc,
		validate:  deps.Validate,
	}

	rg := g.Group("/regulations", jwt)
	rg.GET("/current", api.currentRegulation)
	rg.POST("", api.changeRegulation, requirePermission(user.PermManageRegulation))
	rg.GET("/history", api.regulationHistory, requirePermission(user.PermManageRegulation))

	sg := g.Group("/subjects", jwt)
	sg.GET("", api.querySubjects)
	sg.POST("", api.createSubject, requirePermission(user.PermManageCatalog))

	smg := g.Group("/semesters", jwt)
	smg.GET("", api.querySemesters)
	smg.POST("", api.createSemester, requirePermission(user.PermManageCatalog))

	g.POST("/assignments", api.assignTeacher, jwt, requirePermission(user.PermManageCatalog))
	g.GET("/teachers/:id/assignments", api.queryAssignments, jwt, selfOrPermission(user.PermManageCatalog))
}

// Regulations

func (api *schoolApi) currentRegulation(ctx echo.Context) error {
	reg, err := api.svc.CurrentRegulation(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current regulation")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *schoolApi) changeRegulation(ctx echo.Context) error {
	var data school.NewRegulation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegulation")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reg, err := api.svc.ChangeRegulation(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "changing regulation")
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *schoolApi) regulationHistory(ctx echo.Context) error {
	history, err := api.svc.QueryRegulationHistory(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying regulation history")
	}
	if history == nil {
		history = []school.RegulationHistory{}
	}
	return ctx.JSON(http.StatusOK, history)
}

// Subjects

type gradeQuery struct {
	Grade int `query:"grade"`
}

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	var query gradeQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []school.Subject{})
	}

	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), query.Grade)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

// Semesters

func (api *schoolApi) querySemesters(ctx echo.Context) error {
	semesters, err := api.svc.QuerySemesters(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying semesters")
	}
	if semesters == nil {
		semesters = []school.Semester{}
	}
	return ctx.JSON(http.StatusOK, semesters)
}

func (api *schoolApi) createSemester(ctx echo.Context) error {
	var data school.NewSemester
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSemester")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	sem, err := api.svc.CreateSemester(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating semester")
	}
	return ctx.JSON(http.StatusCreated, sem)
}

// Teaching assignments

func (api *schoolApi) assignTeacher(ctx echo.Context) error {
	var data school.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	teacher, err := api.usrSvc.GetByID(ctx.Request().Context(), data.TeacherID)
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "this user is not a teacher"})
	}
	if _, err = api.enrollSvc.GetClass(ctx.Request().Context(), data.ClassID); err != nil {
		return errors.Wrap(err, "finding class")
	}

	ta, err := api.svc.AssignTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusCreated, ta)
}

func (api *schoolApi) queryAssignments(ctx echo.Context) error {
	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []school.TeachingAssignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}
