package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

// studentApi serves the student portal: visible assignments, the
// student's own submissions, grades, attendance and profile.
type studentApi struct {
	userSvc   user.ServiceInterface
	schoolSvc school.ServiceInterface
	resolver  *school.Resolver
	validate  *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	userSvc user.ServiceInterface,
	schoolSvc school.ServiceInterface,
	resolver *school.Resolver,
	validate *validator.Validate,
) {
	api := studentApi{
		userSvc:   userSvc,
		schoolSvc: schoolSvc,
		resolver:  resolver,
		validate:  validate,
	}

	sg := g.Group("/student", jwt, roleMiddleware(user.RoleStudent))

	sg.GET("/assignments", api.assignments)
	sg.POST("/assignments/:id/submit", api.submit)
	sg.GET("/submissions", api.submissions)
	sg.GET("/grades", api.grades)
	sg.GET("/attendance", api.attendance)
	sg.PUT("/profile", api.updateProfile)
}

// Handlers

func (api *studentApi) assignments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asgs, err := api.resolver.ListVisibleAssignments(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing visible assignments")
	}
	if asgs == nil {
		asgs = []school.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *studentApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data school.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.schoolSvc.Submit(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *studentApi) submissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.schoolSvc.StudentSubmissions(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []school.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *studentApi) grades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	grades, err := api.schoolSvc.StudentGrades(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *studentApi) attendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	recs, err := api.schoolSvc.StudentAttendance(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []school.AttendanceRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	origUsr, err := api.userSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate, origUsr, api.userSvc); err != nil {
		return err
	}

	usr, err := api.userSvc.UpdateProfile(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}
