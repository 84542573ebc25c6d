package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	echoapi "github.com/umirovdev/maktab/apps/api/echo"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

func Test_teacherApi_students(t *testing.T) {
	env := setup(t)
	teacher := env.createTeacher(t, "davron")
	student := env.createStudent(t, "aziza")

	teacherToken := env.getToken(t, teacher)

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/teacher/students",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "teacher required", method: http.MethodGet, path: "/v1/teacher/students",
			token:    env.getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "list students", method: http.MethodGet, path: "/v1/teacher/students", token: teacherToken,
			wantCode: http.StatusOK, wantData: marshallList(t, student),
		},
		{
			name: "retrieve student", method: http.MethodGet, path: "/v1/teacher/students/" + student.ID,
			token:    teacherToken,
			wantCode: http.StatusOK, wantData: marshallObj(t, student),
		},
		{
			name: "unknown student", method: http.MethodGet, path: "/v1/teacher/students/nope", token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "Student not found"}),
		},
		{
			name: "a teacher account is not a student", method: http.MethodGet, path: "/v1/teacher/students/" + teacher.ID,
			token:    teacherToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "Student not found"}),
		},
		{
			name: "create: duplicate username", method: http.MethodPost, path: "/v1/teacher/students",
			token:    teacherToken,
			body:     marshallObj(t, user.NewStudent{FirstName: "Aziza", LastName: "Karimova", Username: student.Username, Password: "S3cret!pwd"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "create: weak password", method: http.MethodPost, path: "/v1/teacher/students",
			token:    teacherToken,
			body:     marshallObj(t, user.NewStudent{FirstName: "Bek", LastName: "Tursunov", Username: "bek", Password: "1234"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("create: ok", func(t *testing.T) {
		body := marshallObj(t, user.NewStudent{FirstName: "Bek", LastName: "Tursunov", Username: "Bek", Password: "S3cret!pwd"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/teacher/students", teacherToken, body)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var usr user.User
		decodeBody(t, rec, &usr)
		if usr.Username != "bek" {
			t.Errorf("Username = %q; want %q (lowercased)", usr.Username, "bek")
		}
		if !usr.MustChangePassword {
			t.Error("new students must change the assigned password")
		}
		if usr.Role != user.RoleStudent {
			t.Errorf("Role = %s; want %s", usr.Role, user.RoleStudent)
		}
	})
}

func Test_teacherApi_resetStudentPassword(t *testing.T) {
	env := setup(t)
	teacher := env.createTeacher(t, "davron")
	student := env.createStudent(t, "aziza")

	teacherToken := env.getToken(t, teacher)
	body := marshallObj(t, user.ResetStudentPassword{Password: "Fresh!pwd1"})

	tests := []httpTest{
		{
			name: "unknown student", path: "/v1/teacher/students/nope/reset-password", body: body,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "Student not found"}),
		},
		{
			name: "teacher accounts cannot be reset here", path: "/v1/teacher/students/" + teacher.ID + "/reset-password",
			body:     body,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "Student not found"}),
		},
		{
			name: "weak password", path: "/v1/teacher/students/" + student.ID + "/reset-password",
			body:     marshallObj(t, user.ResetStudentPassword{Password: "1234"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, teacherToken, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/teacher/students/"+student.ID+"/reset-password", teacherToken, body)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		refreshed, err := env.usrRepo.GetUserByID(context.Background(), student.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		if err := refreshed.CheckPassword("Fresh!pwd1"); err != nil {
			t.Errorf("new password does not verify: %v", err)
		}
		if !refreshed.MustChangePassword {
			t.Error("MustChangePassword not set after reset")
		}
	})
}

func Test_teacherApi_groups(t *testing.T) {
	env := setup(t)
	teacher := env.createTeacher(t, "davron")
	other := env.createTeacher(t, "laylo")
	student := env.createStudent(t, "aziza")

	teacherToken := env.getToken(t, teacher)
	ok := marshallObj(t, echoapi.OkResponse{Ok: true})

	var grp school.Group
	t.Run("create", func(t *testing.T) {
		body := marshallObj(t, school.NewGroup{Name: "Group A", Code: "GRP-A"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/teacher/groups", teacherToken, body)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &grp)
		if grp.TeacherID != teacher.ID {
			t.Errorf("TeacherID = %s; want %s", grp.TeacherID, teacher.ID)
		}
	})

	t.Run("list mine only", func(t *testing.T) {
		env.createGroup(t, other.ID, "GRP-X")

		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/groups", teacherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallList(t, grp)}, rec)
	})

	t.Run("add member", func(t *testing.T) {
		body := marshallObj(t, echoapi.AddMemberRequest{StudentID: student.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/teacher/groups/"+grp.ID+"/members", teacherToken, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: ok}, rec)
	})

	t.Run("add member: teacher account is rejected", func(t *testing.T) {
		tt := httpTest{
			body:     marshallObj(t, echoapi.AddMemberRequest{StudentID: other.ID}),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "Student not found"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/teacher/groups/"+grp.ID+"/members", teacherToken, tt.body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("add member: foreign group is forbidden", func(t *testing.T) {
		tt := httpTest{
			body:     marshallObj(t, echoapi.AddMemberRequest{StudentID: student.ID}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/teacher/groups/"+grp.ID+"/members", env.getToken(t, other), tt.body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/groups/"+grp.ID+"/members", teacherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallList(t, student)}, rec)
	})

	t.Run("student records", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/students/"+student.ID+"/groups", teacherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallList(t, grp)}, rec)

		for _, path := range []string{"attendance", "submissions", "grades"} {
			req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/students/"+student.ID+"/"+path, teacherToken)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallList(t)}, rec)
		}
	})

	t.Run("remove member", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/teacher/groups/"+grp.ID+"/members/"+student.ID, teacherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: ok}, rec)

		isMember, err := env.schoolRepo.IsGroupMember(context.Background(), grp.ID, student.ID)
		if err != nil {
			t.Fatalf("IsGroupMember() failed: %v", err)
		}
		if isMember {
			t.Error("member was not removed")
		}
	})

	t.Run("update", func(t *testing.T) {
		body := marshallObj(t, school.NewGroup{Name: "Group B", Code: "GRP-B"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/teacher/groups/"+grp.ID, teacherToken, body)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var updated school.Group
		decodeBody(t, rec, &updated)
		if updated.Name != "Group B" || updated.Code != "GRP-B" {
			t.Errorf("group = %+v", updated)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/teacher/groups/"+grp.ID, teacherToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: ok}, rec)

		if _, err := env.schoolRepo.GetGroupByID(context.Background(), grp.ID); err != school.ErrGroupNotFound {
			t.Errorf("GetGroupByID() error = %v, want %v", err, school.ErrGroupNotFound)
		}
	})
}
