package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core/user"
)

var (
	// errors
	ErrForbidden          = errors.New("forbidden")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrStudentNotFound    = errors.New("student not found")
)

type (
	Repository interface {
		// subjects
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id string) (Subject, error)
		QuerySubjectsByTeacher(ctx context.Context, teacherID string) ([]Subject, error)
		QuerySubjectsVisibleTo(ctx context.Context, studentID string) ([]Subject, error)
		UpdateSubject(ctx context.Context, sub Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error

		// groups
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
		QueryGroupsByTeacher(ctx context.Context, teacherID string) ([]Group, error)
		QueryGroupsByStudent(ctx context.Context, studentID string) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroup(ctx context.Context, id string) error // cascades to members
		AddGroupMember(ctx context.Context, member GroupMember) error
		RemoveGroupMember(ctx context.Context, groupID, studentID string) error
		IsGroupMember(ctx context.Context, groupID, studentID string) (bool, error)

		// lessons
		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		QueryLessonsByTeacher(ctx context.Context, teacherID string) ([]Lesson, error)

		// attendance
		ReplaceAttendance(ctx context.Context, lessonID string, recs []AttendanceRecord) error
		QueryAttendanceByLesson(ctx context.Context, lessonID string) ([]AttendanceRecord, error)
		QueryAttendanceByStudent(ctx context.Context, studentID string) ([]AttendanceRecord, error)

		// assignments
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]Assignment, error)
		QueryAssignmentsVisibleTo(ctx context.Context, studentID string) ([]Assignment, error)

		// submissions
		UpsertSubmission(ctx context.Context, sub Submission) (Submission, error)
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error)

		// grades
		UpsertGrade(ctx context.Context, grd Grade) (Grade, error)
		QueryGradesByAssignment(ctx context.Context, assignmentID string) ([]Grade, error)
		QueryGradesByStudent(ctx context.Context, studentID string) ([]Grade, error)
	}

	// UserDirectory is the slice of the user service the school service
	// needs for membership checks.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ServiceInterface interface {
		// subjects
		CreateSubject(ctx context.Context, teacherID string, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context, teacherID string) ([]Subject, error)
		UpdateSubject(ctx context.Context, teacherID, id string, ns NewSubject) (Subject, error)
		DeleteSubject(ctx context.Context, teacherID, id string) error

		// groups
		CreateGroup(ctx context.Context, teacherID string, ng NewGroup) (Group, error)
		QueryGroups(ctx context.Context, teacherID string) ([]Group, error)
		UpdateGroup(ctx context.Context, teacherID, id string, ng NewGroup) (Group, error)
		DeleteGroup(ctx context.Context, teacherID, id string) error
		AddGroupMember(ctx context.Context, teacherID, groupID, studentID string) error
		RemoveGroupMember(ctx context.Context, teacherID, groupID, studentID string) error
		StudentGroups(ctx context.Context, studentID string) ([]Group, error)

		// lessons + attendance
		CreateLesson(ctx context.Context, teacherID string, nl NewLesson) (Lesson, error)
		QueryLessons(ctx context.Context, teacherID string) ([]Lesson, error)
		SetAttendance(ctx context.Context, teacherID, lessonID string, entries []AttendanceEntry) error
		LessonAttendance(ctx context.Context, teacherID, lessonID string) ([]AttendanceRecord, error)
		StudentAttendance(ctx context.Context, studentID string) ([]AttendanceRecord, error)

		// assignments
		CreateAssignment(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error)
		QueryAssignments(ctx context.Context, teacherID string) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)

		// submissions
		Submit(ctx context.Context, studentID, assignmentID string, ns NewSubmission) (Submission, error)
		AssignmentSubmissions(ctx context.Context, teacherID, assignmentID string) ([]Submission, error)
		StudentSubmissions(ctx context.Context, studentID string) ([]Submission, error)

		// grades
		GradeSubmission(ctx context.Context, teacherID, assignmentID string, ng NewGrade) (Grade, error)
		AssignmentGrades(ctx context.Context, teacherID, assignmentID string) ([]Grade, error)
		StudentGrades(ctx context.Context, studentID string) ([]Grade, error)
	}

	service struct {
		repo  Repository
		users UserDirectory
	}
)

var _ ServiceInterface = (*service)(nil)

// for tests
var nowFunc = time.Now

func NewService(repo Repository, users UserDirectory) *service {
	return &service{
		repo:  repo,
		users: users,
	}
}

// ------------------------------------------------------------------
// subjects

func (svc *service) CreateSubject(ctx context.Context, teacherID string, ns NewSubject) (Subject, error) {
	sub := Subject{
		ID:        uuid.New().String(),
		Name:      ns.Name,
		Code:      ns.Code,
		TeacherID: teacherID,
		CreatedAt: nowFunc().UTC(),
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *service) QuerySubjects(ctx context.Context, teacherID string) ([]Subject, error) {
	return svc.repo.QuerySubjectsByTeacher(ctx, teacherID)
}

func (svc *service) UpdateSubject(ctx context.Context, teacherID, id string, ns NewSubject) (Subject, error) {
	sub, err := svc.ownedSubject(ctx, teacherID, id)
	if err != nil {
		return Subject{}, err
	}
	sub.Name = ns.Name
	sub.Code = ns.Code
	return svc.repo.UpdateSubject(ctx, sub)
}

func (svc *service) DeleteSubject(ctx context.Context, teacherID, id string) error {
	if _, err := svc.ownedSubject(ctx, teacherID, id); err != nil {
		return err
	}
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *service) ownedSubject(ctx context.Context, teacherID, id string) (Subject, error) {
	sub, err := svc.repo.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if sub.TeacherID != teacherID {
		return Subject{}, ErrForbidden
	}
	return sub, nil
}

// ------------------------------------------------------------------
// groups

func (svc *service) CreateGroup(ctx context.Context, teacherID string, ng NewGroup) (Group, error) {
	grp := Group{
		ID:        uuid.New().String(),
		Name:      ng.Name,
		Code:      ng.Code,
		TeacherID: teacherID,
		CreatedAt: nowFunc().UTC(),
	}
	return svc.repo.CreateGroup(ctx, grp)
}

func (svc *service) QueryGroups(ctx context.Context, teacherID string) ([]Group, error) {
	return svc.repo.QueryGroupsByTeacher(ctx, teacherID)
}

func (svc *service) UpdateGroup(ctx context.Context, teacherID, id string, ng NewGroup) (Group, error) {
	grp, err := svc.ownedGroup(ctx, teacherID, id)
	if err != nil {
		return Group{}, err
	}
	grp.Name = ng.Name
	grp.Code = ng.Code
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *service) DeleteGroup(ctx context.Context, teacherID, id string) error {
	if _, err := svc.ownedGroup(ctx, teacherID, id); err != nil {
		return err
	}
	return svc.repo.DeleteGroup(ctx, id)
}

func (svc *service) AddGroupMember(ctx context.Context, teacherID, groupID, studentID string) error {
	if _, err := svc.ownedGroup(ctx, teacherID, groupID); err != nil {
		return err
	}
	usr, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ErrStudentNotFound
		}
		return err
	}
	if !usr.IsStudent() {
		return ErrStudentNotFound
	}
	// membership is a set; re-adding is a no-op
	if ok, err := svc.repo.IsGroupMember(ctx, groupID, studentID); err != nil || ok {
		return err
	}
	member := GroupMember{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		StudentID: studentID,
		CreatedAt: nowFunc().UTC(),
	}
	return svc.repo.AddGroupMember(ctx, member)
}

func (svc *service) RemoveGroupMember(ctx context.Context, teacherID, groupID, studentID string) error {
	if _, err := svc.ownedGroup(ctx, teacherID, groupID); err != nil {
		return err
	}
	return svc.repo.RemoveGroupMember(ctx, groupID, studentID)
}

func (svc *service) StudentGroups(ctx context.Context, studentID string) ([]Group, error) {
	return svc.repo.QueryGroupsByStudent(ctx, studentID)
}

func (svc *service) ownedGroup(ctx context.Context, teacherID, id string) (Group, error) {
	grp, err := svc.repo.GetGroupByID(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if grp.TeacherID != teacherID {
		return Group{}, ErrForbidden
	}
	return grp, nil
}

// ------------------------------------------------------------------
// lessons + attendance

func (svc *service) CreateLesson(ctx context.Context, teacherID string, nl NewLesson) (Lesson, error) {
	lsn := Lesson{
		ID:        uuid.New().String(),
		SubjectID: nl.SubjectID,
		TeacherID: teacherID,
		DateTime:  nl.DateTime,
		Topic:     nl.Topic,
		CreatedAt: nowFunc().UTC(),
	}
	return svc.repo.CreateLesson(ctx, lsn)
}

func (svc *service) QueryLessons(ctx context.Context, teacherID string) ([]Lesson, error) {
	return svc.repo.QueryLessonsByTeacher(ctx, teacherID)
}

// SetAttendance replaces the lesson's attendance sheet with the given
// entries.
func (svc *service) SetAttendance(ctx context.Context, teacherID, lessonID string, entries []AttendanceEntry) error {
	if _, err := svc.ownedLesson(ctx, teacherID, lessonID); err != nil {
		return err
	}
	now := nowFunc().UTC()
	recs := make([]AttendanceRecord, 0, len(entries))
	for _, entry := range entries {
		recs = append(recs, AttendanceRecord{
			ID:         uuid.New().String(),
			LessonID:   lessonID,
			StudentID:  entry.StudentID,
			Status:     entry.Status,
			RecordedAt: now,
		})
	}
	return svc.repo.ReplaceAttendance(ctx, lessonID, recs)
}

func (svc *service) LessonAttendance(ctx context.Context, teacherID, lessonID string) ([]AttendanceRecord, error) {
	if _, err := svc.ownedLesson(ctx, teacherID, lessonID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendanceByLesson(ctx, lessonID)
}

func (svc *service) StudentAttendance(ctx context.Context, studentID string) ([]AttendanceRecord, error) {
	return svc.repo.QueryAttendanceByStudent(ctx, studentID)
}

func (svc *service) ownedLesson(ctx context.Context, teacherID, id string) (Lesson, error) {
	lsn, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if lsn.TeacherID != teacherID {
		return Lesson{}, ErrForbidden
	}
	return lsn, nil
}

// ------------------------------------------------------------------
// assignments

func (svc *service) CreateAssignment(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error) {
	asg := Assignment{
		ID:          uuid.New().String(),
		SubjectID:   na.SubjectID,
		TeacherID:   teacherID,
		Title:       na.Title,
		Description: na.Description,
		Deadline:    na.Deadline,
		MaxScore:    na.MaxScore,
		Attachments: na.Attachments,
		TargetType:  na.TargetType,
		TargetID:    na.TargetID,
		IsLab:       na.IsLab,
		LabEditor:   na.LabEditor,
		CreatedAt:   nowFunc().UTC(),
	}
	if asg.Attachments == nil {
		asg.Attachments = []File{}
	}
	return svc.repo.CreateAssignment(ctx, asg)
}

func (svc *service) QueryAssignments(ctx context.Context, teacherID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByTeacher(ctx, teacherID)
}

func (svc *service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

// ------------------------------------------------------------------
// submissions

// Submit records the student's work on an assignment, overwriting any
// previous submission. Work turned in after the deadline is kept and
// flagged late.
func (svc *service) Submit(ctx context.Context, studentID, assignmentID string, ns NewSubmission) (Submission, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	now := nowFunc().UTC()
	sub := Submission{
		ID:           uuid.New().String(),
		AssignmentID: asg.ID,
		StudentID:    studentID,
		SubmittedAt:  now,
		Text:         ns.Text,
		Files:        ns.Files,
		ContentHTML:  ns.ContentHTML,
		SheetJSON:    ns.SheetJSON,
		IsLate:       now.After(asg.Deadline),
	}
	if sub.Files == nil {
		sub.Files = []File{}
	}
	return svc.repo.UpsertSubmission(ctx, sub)
}

func (svc *service) AssignmentSubmissions(ctx context.Context, teacherID, assignmentID string) ([]Submission, error) {
	if _, err := svc.ownedAssignment(ctx, teacherID, assignmentID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissionsByAssignment(ctx, assignmentID)
}

func (svc *service) StudentSubmissions(ctx context.Context, studentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByStudent(ctx, studentID)
}

func (svc *service) ownedAssignment(ctx context.Context, teacherID, id string) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if asg.TeacherID != teacherID {
		return Assignment{}, ErrForbidden
	}
	return asg, nil
}

// ------------------------------------------------------------------
// grades

// GradeSubmission scores a student's work. One grade is kept per
// (assignment, student); regrading overwrites the previous score.
func (svc *service) GradeSubmission(ctx context.Context, teacherID, assignmentID string, ng NewGrade) (Grade, error) {
	if _, err := svc.ownedAssignment(ctx, teacherID, assignmentID); err != nil {
		return Grade{}, err
	}
	grd := Grade{
		ID:           uuid.New().String(),
		AssignmentID: assignmentID,
		StudentID:    ng.StudentID,
		Score:        ng.Score,
		Grade:        GradeForScore(ng.Score),
		GradedAt:     nowFunc().UTC(),
		TeacherID:    teacherID,
	}
	return svc.repo.UpsertGrade(ctx, grd)
}

func (svc *service) AssignmentGrades(ctx context.Context, teacherID, assignmentID string) ([]Grade, error) {
	if _, err := svc.ownedAssignment(ctx, teacherID, assignmentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGradesByAssignment(ctx, assignmentID)
}

func (svc *service) StudentGrades(ctx context.Context, studentID string) ([]Grade, error) {
	return svc.repo.QueryGradesByStudent(ctx, studentID)
}
