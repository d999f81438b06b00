package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type studentApi struct {
	svc        enrollment.ServiceInterface
	schoolSvc  school.ServiceInterface
	gradingSvc grading.ServiceInterface
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:        deps.EnrollSvc,
		schoolSvc:  deps.SchoolSvc,
		gradingSvc: deps.GradingSvc,
		validate:   deps.Validate,
	}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query, requirePermission(user.PermViewReports))
	sg.POST("", api.admit, requirePermission(user.PermAdmitStudents))
	sg.POST("/admission-check", api.checkAdmission, requirePermission(user.PermAdmitStudents))

	// detail endpoints: permissions are checked before the lookup
	object := objectMiddleware(api.getStudent)
	sg.GET("/:id", api.retrieve, selfOrPermission(user.PermViewReports), object)
	sg.PUT("/:id", api.update, requirePermission(user.PermAdmitStudents), object)
	sg.GET("/:id/report", api.report, selfOrPermission(user.PermViewReports, user.PermViewOwnReport), object)
}

func (api *studentApi) getStudent(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetStudent(ctx.Request().Context(), id)
}

type (
	AdmissionResponse struct {
		Student    enrollment.Student     `json:"student"`
		Placements []enrollment.Placement `json:"placements"`
	}

	AdmissionCheckRequest struct {
		BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	}

	AdmissionCheckResponse struct {
		Age      int  `json:"age"`
		Eligible bool `json:"eligible"`
	}
)

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Student{})
	}
	var page core.Page
	if err := ctx.Bind(&page); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "page", Error: "invalid page"})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []enrollment.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) admit(ctx echo.Context) error {
	var data enrollment.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	reg, err := api.schoolSvc.CurrentRegulation(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current regulation")
	}

	stu, placements, err := api.svc.Admit(ctx.Request().Context(), reg, data)
	if err != nil {
		return errors.Wrap(err, "admitting student")
	}
	if placements == nil {
		placements = []enrollment.Placement{}
	}
	return ctx.JSON(http.StatusCreated, AdmissionResponse{Student: stu, Placements: placements})
}

func (api *studentApi) checkAdmission(ctx echo.Context) error {
	var data AdmissionCheckRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdmissionCheckRequest")
	}
	data.BirthDate = core.CleanString(data.BirthDate)
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	birth, err := time.Parse("2006-01-02", data.BirthDate)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "birth_date", Error: "date must be formatted as YYYY-MM-DD"})
	}

	reg, err := api.schoolSvc.CurrentRegulation(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current regulation")
	}

	age, err := api.svc.ValidateAdmission(ctx.Request().Context(), reg, birth)
	if err != nil {
		return errors.Wrap(err, "validating admission")
	}
	return ctx.JSON(http.StatusOK, AdmissionCheckResponse{Age: age, Eligible: true})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	stu, ok := ctx.Get(contextObjectKey).(enrollment.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) update(ctx echo.Context) error {
	stu, ok := ctx.Get(contextObjectKey).(enrollment.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}

	var data enrollment.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}

	reg, err := api.schoolSvc.CurrentRegulation(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current regulation")
	}

	stu, err = api.svc.UpdateStudent(ctx.Request().Context(), reg, stu.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) report(ctx echo.Context) error {
	stu, ok := ctx.Get(contextObjectKey).(enrollment.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	var query ReportQuery
	if err := query.Bind(ctx); err != nil {
		return err
	}

	rep, err := api.gradingSvc.ComputeStudentReport(ctx.Request().Context(), stu.ID, query.SubjectID, query.SemesterID)
	if err != nil {
		return errors.Wrap(err, "computing student report")
	}
	return ctx.JSON(http.StatusOK, rep)
}
