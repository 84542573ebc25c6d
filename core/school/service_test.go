package school_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
	logsvc "github.com/umirovdev/maktab/services/logger"
	inmemdb "github.com/umirovdev/maktab/storage/database/inmem"
)

func setup(t *testing.T) (school.ServiceInterface, school.Repository, user.ServiceInterface) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), nil, &core.Config{AppName: "Maktab"}, logger)
	repo := inmemdb.NewSchoolRepository(db)
	return school.NewService(repo, usrSvc), repo, usrSvc
}

func createStudent(t *testing.T, usrSvc user.ServiceInterface, uname string) user.User {
	t.Helper()
	usr, err := usrSvc.CreateStudent(context.Background(), user.NewStudent{
		FirstName: "Test",
		LastName:  "Student",
		Username:  uname,
		Password:  "s3cr3tpwd",
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return usr
}

func TestSubjectOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	sub, err := svc.CreateSubject(ctx, "t1", school.NewSubject{Name: "Informatics", Code: "INF"})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}

	t.Run("owner can update", func(t *testing.T) {
		updated, err := svc.UpdateSubject(ctx, "t1", sub.ID, school.NewSubject{Name: "CS", Code: "CS"})
		if err != nil {
			t.Fatalf("UpdateSubject() failed: %v", err)
		}
		if updated.Name != "CS" {
			t.Errorf("UpdateSubject() Name = %q, want %q", updated.Name, "CS")
		}
	})

	t.Run("another teacher is forbidden", func(t *testing.T) {
		if _, err := svc.UpdateSubject(ctx, "t2", sub.ID, school.NewSubject{Name: "X", Code: "X"}); err != school.ErrForbidden {
			t.Fatalf("UpdateSubject() error = %v, want %v", err, school.ErrForbidden)
		}
		if err := svc.DeleteSubject(ctx, "t2", sub.ID); err != school.ErrForbidden {
			t.Fatalf("DeleteSubject() error = %v, want %v", err, school.ErrForbidden)
		}
	})

	t.Run("absent row reads as not found", func(t *testing.T) {
		if _, err := svc.UpdateSubject(ctx, "t1", "missing", school.NewSubject{Name: "X", Code: "X"}); err != school.ErrSubjectNotFound {
			t.Fatalf("UpdateSubject() error = %v, want %v", err, school.ErrSubjectNotFound)
		}
	})

	t.Run("owner can delete", func(t *testing.T) {
		if err := svc.DeleteSubject(ctx, "t1", sub.ID); err != nil {
			t.Fatalf("DeleteSubject() failed: %v", err)
		}
		subs, err := svc.QuerySubjects(ctx, "t1")
		if err != nil {
			t.Fatalf("QuerySubjects() failed: %v", err)
		}
		if len(subs) != 0 {
			t.Errorf("QuerySubjects() returned %d subjects, want 0", len(subs))
		}
	})
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	svc, repo, usrSvc := setup(t)

	grp, err := svc.CreateGroup(ctx, "t1", school.NewGroup{Name: "Year 1", Code: "Y1"})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	student := createStudent(t, usrSvc, "aziza")

	if err := svc.AddGroupMember(ctx, "t2", grp.ID, student.ID); err != school.ErrForbidden {
		t.Fatalf("AddGroupMember() error = %v, want %v", err, school.ErrForbidden)
	}
	if err := svc.AddGroupMember(ctx, "t1", grp.ID, "missing"); err != school.ErrStudentNotFound {
		t.Fatalf("AddGroupMember() error = %v, want %v", err, school.ErrStudentNotFound)
	}

	if err := svc.AddGroupMember(ctx, "t1", grp.ID, student.ID); err != nil {
		t.Fatalf("AddGroupMember() failed: %v", err)
	}
	// re-adding is a no-op
	if err := svc.AddGroupMember(ctx, "t1", grp.ID, student.ID); err != nil {
		t.Fatalf("second AddGroupMember() failed: %v", err)
	}
	members, err := usrSvc.QueryStudents(ctx, grp.ID)
	if err != nil {
		t.Fatalf("QueryStudents() failed: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("QueryStudents() returned %d members, want 1", len(members))
	}

	grps, err := svc.StudentGroups(ctx, student.ID)
	if err != nil {
		t.Fatalf("StudentGroups() failed: %v", err)
	}
	if len(grps) != 1 || grps[0].ID != grp.ID {
		t.Errorf("StudentGroups() = %+v, want the one group", grps)
	}

	if err := svc.RemoveGroupMember(ctx, "t1", grp.ID, student.ID); err != nil {
		t.Fatalf("RemoveGroupMember() failed: %v", err)
	}
	if ok, _ := repo.IsGroupMember(ctx, grp.ID, student.ID); ok {
		t.Error("IsGroupMember() = true after removal")
	}

	// deleting the group drops its memberships
	if err := svc.AddGroupMember(ctx, "t1", grp.ID, student.ID); err != nil {
		t.Fatalf("AddGroupMember() failed: %v", err)
	}
	if err := svc.DeleteGroup(ctx, "t1", grp.ID); err != nil {
		t.Fatalf("DeleteGroup() failed: %v", err)
	}
	if ok, _ := repo.IsGroupMember(ctx, grp.ID, student.ID); ok {
		t.Error("IsGroupMember() = true after group deletion")
	}
}

func TestSubmitLateFlag(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)

	open := createAssignmentWithDeadline(t, repo, time.Now().Add(24*time.Hour))
	closed := createAssignmentWithDeadline(t, repo, time.Now().Add(-time.Hour))

	sub, err := svc.Submit(ctx, "s1", open.ID, school.NewSubmission{Text: "done"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.IsLate {
		t.Error("Submit() before deadline flagged late")
	}

	late, err := svc.Submit(ctx, "s1", closed.ID, school.NewSubmission{Text: "sorry"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if !late.IsLate {
		t.Error("Submit() after deadline not flagged late")
	}

	// resubmission overwrites, it does not duplicate
	again, err := svc.Submit(ctx, "s1", open.ID, school.NewSubmission{Text: "done v2"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("Submit() created a new row %q, want upsert on %q", again.ID, sub.ID)
	}
	subs, err := svc.StudentSubmissions(ctx, "s1")
	if err != nil {
		t.Fatalf("StudentSubmissions() failed: %v", err)
	}
	if len(subs) != 2 {
		t.Errorf("StudentSubmissions() returned %d rows, want 2", len(subs))
	}

	if _, err := svc.Submit(ctx, "s1", "missing", school.NewSubmission{}); err != school.ErrAssignmentNotFound {
		t.Fatalf("Submit() error = %v, want %v", err, school.ErrAssignmentNotFound)
	}
}

func TestGradeSubmission(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)

	asg := createAssignmentWithDeadline(t, repo, time.Now().Add(24*time.Hour))

	if _, err := svc.GradeSubmission(ctx, "t2", asg.ID, school.NewGrade{StudentID: "s1", Score: 80}); err != school.ErrForbidden {
		t.Fatalf("GradeSubmission() error = %v, want %v", err, school.ErrForbidden)
	}

	grd, err := svc.GradeSubmission(ctx, "t1", asg.ID, school.NewGrade{StudentID: "s1", Score: 55})
	if err != nil {
		t.Fatalf("GradeSubmission() failed: %v", err)
	}
	if grd.Grade != school.GradeFail {
		t.Errorf("GradeSubmission() Grade = %q, want %q", grd.Grade, school.GradeFail)
	}

	// regrading overwrites the single grade per (assignment, student)
	regraded, err := svc.GradeSubmission(ctx, "t1", asg.ID, school.NewGrade{StudentID: "s1", Score: 92})
	if err != nil {
		t.Fatalf("GradeSubmission() failed: %v", err)
	}
	if regraded.ID != grd.ID {
		t.Errorf("GradeSubmission() created a new row %q, want upsert on %q", regraded.ID, grd.ID)
	}
	if regraded.Grade != "5" {
		t.Errorf("GradeSubmission() Grade = %q, want %q", regraded.Grade, "5")
	}

	grds, err := svc.AssignmentGrades(ctx, "t1", asg.ID)
	if err != nil {
		t.Fatalf("AssignmentGrades() failed: %v", err)
	}
	if len(grds) != 1 {
		t.Errorf("AssignmentGrades() returned %d rows, want 1", len(grds))
	}
}

func TestSetAttendance(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	lsn, err := svc.CreateLesson(ctx, "t1", school.NewLesson{
		SubjectID: "sub1",
		DateTime:  time.Now().Add(time.Hour),
		Topic:     "Loops",
	})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}

	entries := []school.AttendanceEntry{
		{StudentID: "s1", Status: school.AttendanceOnTime},
		{StudentID: "s2", Status: school.AttendanceLate},
	}
	if err := svc.SetAttendance(ctx, "t2", lsn.ID, entries); err != school.ErrForbidden {
		t.Fatalf("SetAttendance() error = %v, want %v", err, school.ErrForbidden)
	}
	if err := svc.SetAttendance(ctx, "t1", "missing", entries); err != school.ErrLessonNotFound {
		t.Fatalf("SetAttendance() error = %v, want %v", err, school.ErrLessonNotFound)
	}
	if err := svc.SetAttendance(ctx, "t1", lsn.ID, entries); err != nil {
		t.Fatalf("SetAttendance() failed: %v", err)
	}

	// a second sheet replaces the first
	if err := svc.SetAttendance(ctx, "t1", lsn.ID, []school.AttendanceEntry{
		{StudentID: "s1", Status: school.AttendanceAbsent},
	}); err != nil {
		t.Fatalf("SetAttendance() failed: %v", err)
	}
	recs, err := svc.LessonAttendance(ctx, "t1", lsn.ID)
	if err != nil {
		t.Fatalf("LessonAttendance() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("LessonAttendance() returned %d records, want 1", len(recs))
	}
	if recs[0].Status != school.AttendanceAbsent {
		t.Errorf("LessonAttendance() Status = %q, want %q", recs[0].Status, school.AttendanceAbsent)
	}

	byStudent, err := svc.StudentAttendance(ctx, "s1")
	if err != nil {
		t.Fatalf("StudentAttendance() failed: %v", err)
	}
	if len(byStudent) != 1 {
		t.Errorf("StudentAttendance() returned %d records, want 1", len(byStudent))
	}
}

func createAssignmentWithDeadline(t *testing.T, repo school.Repository, deadline time.Time) school.Assignment {
	t.Helper()
	asg, err := repo.CreateAssignment(context.Background(), school.Assignment{
		ID:        uuid.New().String(),
		SubjectID: "sub1",
		TeacherID: "t1",
		Title:     "hw",
		Deadline:  deadline,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createAssignmentWithDeadline() failed: %v", err)
	}
	return asg
}
