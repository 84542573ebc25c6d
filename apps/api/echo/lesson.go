package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

type lessonApi struct {
	svc      school.ServiceInterface
	validate *validator.Validate
}

func registerLessonAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc school.ServiceInterface, validate *validator.Validate) {
	api := lessonApi{
		svc:      svc,
		validate: validate,
	}

	lg := g.Group("/lessons", jwt, roleMiddleware(user.RoleTeacher))
	lg.GET("", api.query)
	lg.POST("", api.create)
	lg.GET("/:id/attendance", api.attendance)
	lg.POST("/:id/attendance", api.setAttendance)
}

// Handlers

func (api *lessonApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []school.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data school.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err := api.svc.CreateLesson(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *lessonApi) attendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	recs, err := api.svc.LessonAttendance(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying lesson attendance")
	}
	if recs == nil {
		recs = []school.AttendanceRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

// setAttendance replaces the lesson's attendance sheet wholesale.
func (api *lessonApi) setAttendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var entries []school.AttendanceEntry
	if err := ctx.Bind(&entries); err != nil {
		return errors.Wrap(err, "binding to []AttendanceEntry")
	}
	for i := range entries {
		if err := entries[i].Validate(api.validate); err != nil {
			return err
		}
	}

	if err := api.svc.SetAttendance(ctx.Request().Context(), claims.Subject, ctx.Param("id"), entries); err != nil {
		return errors.Wrap(err, "setting attendance")
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}
