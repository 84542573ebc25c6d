package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

// teacherApi serves the teacher portal: student account management,
// group rosters and per-student record lookups.
type teacherApi struct {
	userSvc   user.ServiceInterface
	schoolSvc school.ServiceInterface
	validate  *validator.Validate
}

func registerTeacherAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	userSvc user.ServiceInterface,
	schoolSvc school.ServiceInterface,
	validate *validator.Validate,
) {
	api := teacherApi{
		userSvc:   userSvc,
		schoolSvc: schoolSvc,
		validate:  validate,
	}

	tg := g.Group("/teacher", jwt, roleMiddleware(user.RoleTeacher))

	tg.GET("/students", api.queryStudents)
	tg.POST("/students", api.createStudent)
	tg.GET("/students/:id", api.retrieveStudent)
	tg.POST("/students/:id/reset-password", api.resetStudentPassword)
	tg.GET("/students/:id/groups", api.studentGroups)
	tg.GET("/students/:id/attendance", api.studentAttendance)
	tg.GET("/students/:id/submissions", api.studentSubmissions)
	tg.GET("/students/:id/grades", api.studentGrades)

	tg.GET("/groups", api.queryGroups)
	tg.POST("/groups", api.createGroup)
	tg.PUT("/groups/:id", api.updateGroup)
	tg.DELETE("/groups/:id", api.destroyGroup)
	tg.GET("/groups/:id/members", api.groupMembers)
	tg.POST("/groups/:id/members", api.addGroupMember)
	tg.DELETE("/groups/:id/members/:studentId", api.removeGroupMember)
}

// Student handlers

func (api *teacherApi) queryStudents(ctx echo.Context) error {
	students, err := api.userSvc.QueryStudents(ctx.Request().Context(), ctx.QueryParam("groupId"))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *teacherApi) createStudent(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate, api.userSvc); err != nil {
		return err
	}

	usr, err := api.userSvc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *teacherApi) retrieveStudent(ctx echo.Context) error {
	usr, err := api.getStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *teacherApi) resetStudentPassword(ctx echo.Context) error {
	if _, err := api.getStudent(ctx); err != nil {
		return err
	}

	var data user.ResetStudentPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetStudentPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.userSvc.ResetPassword(ctx.Request().Context(), ctx.Param("id"), data.Password)
	if err != nil {
		return errors.Wrap(err, "resetting student password")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *teacherApi) studentGroups(ctx echo.Context) error {
	groups, err := api.schoolSvc.StudentGroups(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student groups")
	}
	if groups == nil {
		groups = []school.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *teacherApi) studentAttendance(ctx echo.Context) error {
	recs, err := api.schoolSvc.StudentAttendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student attendance")
	}
	if recs == nil {
		recs = []school.AttendanceRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *teacherApi) studentSubmissions(ctx echo.Context) error {
	subs, err := api.schoolSvc.StudentSubmissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student submissions")
	}
	if subs == nil {
		subs = []school.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *teacherApi) studentGrades(ctx echo.Context) error {
	grades, err := api.schoolSvc.StudentGrades(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

// getStudent loads the addressed account, reporting any non-student or
// missing account as "student not found".
func (api *teacherApi) getStudent(ctx echo.Context) (user.User, error) {
	usr, err := api.userSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, school.ErrStudentNotFound
		}
		return user.User{}, errors.Wrap(err, "finding student by ID")
	}
	if !usr.IsStudent() {
		return user.User{}, school.ErrStudentNotFound
	}
	return usr, nil
}

// Group handlers

func (api *teacherApi) queryGroups(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	groups, err := api.schoolSvc.QueryGroups(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []school.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *teacherApi) createGroup(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data school.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.schoolSvc.CreateGroup(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *teacherApi) updateGroup(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data school.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.schoolSvc.UpdateGroup(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *teacherApi) destroyGroup(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.schoolSvc.DeleteGroup(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}

func (api *teacherApi) groupMembers(ctx echo.Context) error {
	students, err := api.userSvc.QueryStudents(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying group members")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *teacherApi) addGroupMember(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data AddMemberRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.schoolSvc.AddGroupMember(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.StudentID); err != nil {
		return errors.Wrap(err, "adding group member")
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}

func (api *teacherApi) removeGroupMember(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.schoolSvc.RemoveGroupMember(ctx.Request().Context(), claims.Subject, ctx.Param("id"), ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing group member")
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}

type AddMemberRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

func (ar *AddMemberRequest) Validate(validate *validator.Validate) error {
	ar.StudentID = core.CleanString(ar.StudentID)
	return validate.Struct(ar)
}
