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

type classApi struct {
	svc        enrollment.ServiceInterface
	schoolSvc  school.ServiceInterface
	gradingSvc grading.ServiceInterface
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := classApi{
		svc:        deps.EnrollSvc,
		schoolSvc:  deps.SchoolSvc,
		gradingSvc: deps.GradingSvc,
	}

	cg := g.Group("/classes", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, requirePermission(user.PermManageClasses))
	cg.POST("/balance", api.balance, requirePermission(user.PermBalanceClasses))

	// detail endpoints
	dg := cg.Group("/:id", objectMiddleware(api.getClass))
	dg.GET("", api.retrieve)
	dg.GET("/students", api.roster, requirePermission(user.PermViewReports))
	dg.GET("/reports", api.reports, requirePermission(user.PermViewReports))
	dg.GET("/statistics", api.statistics, requirePermission(user.PermViewStatistics))

	g.GET("/statistics", api.schoolStatistics, jwt, requirePermission(user.PermViewStatistics))
}

// regulation returns the Regulation in force, or a zero Regulation when none was ever set.
func regulation(ctx echo.Context, svc school.ServiceInterface) (school.Regulation, error) {
	reg, err := svc.CurrentRegulation(ctx.Request().Context())
	if err != nil {
		if errors.Cause(err) == school.ErrRegulationNotFound {
			return school.Regulation{}, nil
		}
		return school.Regulation{}, errors.Wrap(err, "getting current regulation")
	}
	return reg, nil
}

func (api *classApi) getClass(ctx echo.Context, id string) (interface{}, error) {
	cls, err := api.svc.GetClass(ctx.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	reg, err := regulation(ctx, api.schoolSvc)
	if err != nil {
		return nil, err
	}
	return cls.WithCapacity(reg), nil
}

// Handlers

func (api *classApi) query(ctx echo.Context) error {
	var query gradeQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Class{})
	}

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), query.Grade)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	reg, err := regulation(ctx, api.schoolSvc)
	if err != nil {
		return err
	}
	for i := range classes {
		classes[i] = classes[i].WithCapacity(reg)
	}
	if classes == nil {
		classes = []enrollment.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	var data enrollment.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}

	cls, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	reg, err := regulation(ctx, api.schoolSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cls.WithCapacity(reg))
}

func (api *classApi) balance(ctx echo.Context) error {
	reg, err := api.schoolSvc.CurrentRegulation(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current regulation")
	}

	placements, err := api.svc.AssignUnplacedStudents(ctx.Request().Context(), reg)
	if err != nil {
		return errors.Wrap(err, "balancing classes")
	}
	if placements == nil {
		placements = []enrollment.Placement{}
	}
	return ctx.JSON(http.StatusOK, placements)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, ok := ctx.Get(contextObjectKey).(enrollment.Class)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving class from context")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) roster(ctx echo.Context) error {
	cls, ok := ctx.Get(contextObjectKey).(enrollment.Class)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving class from context")
	}

	students, err := api.svc.ClassRoster(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "getting class roster")
	}
	if students == nil {
		students = []enrollment.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) reports(ctx echo.Context) error {
	cls, ok := ctx.Get(contextObjectKey).(enrollment.Class)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving class from context")
	}
	var query ReportQuery
	if err := query.Bind(ctx); err != nil {
		return err
	}

	reports, err := api.gradingSvc.ComputeClassReports(ctx.Request().Context(), cls.ID, query.SubjectID, query.SemesterID)
	if err != nil {
		return errors.Wrap(err, "computing class reports")
	}
	if reports == nil {
		reports = []grading.StudentReport{}
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *classApi) statistics(ctx echo.Context) error {
	cls, ok := ctx.Get(contextObjectKey).(enrollment.Class)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving class from context")
	}
	var query ReportQuery
	if err := query.Bind(ctx); err != nil {
		return err
	}

	stats, err := api.gradingSvc.ComputeClassStatistics(ctx.Request().Context(), cls.ID, query.SubjectID, query.SemesterID)
	if err != nil {
		return errors.Wrap(err, "computing class statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *classApi) schoolStatistics(ctx echo.Context) error {
	var query ReportQuery
	if err := query.Bind(ctx); err != nil {
		return err
	}

	stats, err := api.gradingSvc.ComputeSchoolStatistics(ctx.Request().Context(), query.SubjectID, query.SemesterID)
	if err != nil {
		return errors.Wrap(err, "computing school statistics")
	}
	if stats == nil {
		stats = []grading.ClassStatistics{}
	}
	return ctx.JSON(http.StatusOK, stats)
}
