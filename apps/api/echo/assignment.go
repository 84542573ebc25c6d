package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

type assignmentApi struct {
	svc      school.ServiceInterface
	resolver *school.Resolver
	validate *validator.Validate
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc school.ServiceInterface,
	resolver *school.Resolver,
	validate *validator.Validate,
) {
	api := assignmentApi{
		svc:      svc,
		resolver: resolver,
		validate: validate,
	}

	ag := g.Group("/assignments", jwt)
	ag.GET("/:id", api.retrieve)

	// teacher-only endpoints
	tg := ag.Group("", roleMiddleware(user.RoleTeacher))
	tg.GET("", api.query)
	tg.POST("", api.create)
	tg.GET("/:id/submissions", api.submissions)
	tg.GET("/:id/grades", api.grades)
	tg.POST("/:id/grade", api.grade)
}

// Handlers

func (api *assignmentApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asgs, err := api.svc.QueryAssignments(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []school.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data school.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asg, err := api.svc.CreateAssignment(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

// retrieve enforces per-role access: a teacher only sees their own
// assignments, a student only those resolved as visible to them.
func (api *assignmentApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asg, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment by ID")
	}

	switch claims.Role {
	case user.RoleTeacher:
		if asg.TeacherID != claims.Subject {
			return errHttpForbidden
		}
	case user.RoleStudent:
		visible, err := api.resolver.CanAccess(ctx.Request().Context(), asg, claims.Subject)
		if err != nil {
			return errors.Wrap(err, "resolving assignment visibility")
		}
		if !visible {
			return errHttpForbidden
		}
	default:
		return errHttpForbidden
	}

	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) submissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.svc.AssignmentSubmissions(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying assignment submissions")
	}
	if subs == nil {
		subs = []school.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) grades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	grades, err := api.svc.AssignmentGrades(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying assignment grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data school.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grd, err := api.svc.GradeSubmission(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, grd)
}
