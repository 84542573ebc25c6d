package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umirovdev/maktab/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// assignments visible to a student: broadcast, targeted at them, or
// targeted at a group they belong to.
const visibleAssignmentsCond = `
	(a.target_type IS NULL)
	OR (a.target_type = 'STUDENT' AND a.target_id = $1)
	OR (a.target_type = 'GROUP' AND EXISTS (
		SELECT 1 FROM group_members gm WHERE gm.group_id = a.target_id AND gm.student_id = $1
	))`

// ------------------------------------------------------------------
// subjects

type subjectRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	TeacherID string    `db:"teacher_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r subjectRow) toSubject() school.Subject {
	return school.Subject(r)
}

func toSubjects(rows []subjectRow) []school.Subject {
	subs := make([]school.Subject, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubject())
	}
	return subs
}

func (repo schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO subjects (id, name, code, teacher_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Name, sub.Code, sub.TeacherID, sub.CreatedAt.UTC(),
	)
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "creating subject")
	}
	return sub, nil
}

func (repo schoolRepository) GetSubjectByID(ctx context.Context, id string) (school.Subject, error) {
	var row subjectRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM subjects WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Subject{}, school.ErrSubjectNotFound
		}
		return school.Subject{}, errors.Wrap(err, "getting subject")
	}
	return row.toSubject(), nil
}

func (repo schoolRepository) QuerySubjectsByTeacher(ctx context.Context, teacherID string) ([]school.Subject, error) {
	var rows []subjectRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM subjects WHERE teacher_id = $1 ORDER BY created_at DESC`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return toSubjects(rows), nil
}

func (repo schoolRepository) QuerySubjectsVisibleTo(ctx context.Context, studentID string) ([]school.Subject, error) {
	var rows []subjectRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT s.* FROM subjects s
		JOIN assignments a ON a.subject_id = s.id
		WHERE `+visibleAssignmentsCond+`
		ORDER BY s.created_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying visible subjects")
	}
	return toSubjects(rows), nil
}

func (repo schoolRepository) UpdateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE subjects SET name = $1, code = $2 WHERE id = $3`, sub.Name, sub.Code, sub.ID)
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	return sub, nil
}

func (repo schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return nil
}

// ------------------------------------------------------------------
// groups

type groupRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	TeacherID string    `db:"teacher_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r groupRow) toGroup() school.Group {
	return school.Group(r)
}

func toGroups(rows []groupRow) []school.Group {
	grps := make([]school.Group, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.toGroup())
	}
	return grps
}

func (repo schoolRepository) CreateGroup(ctx context.Context, grp school.Group) (school.Group, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO student_groups (id, name, code, teacher_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		grp.ID, grp.Name, grp.Code, grp.TeacherID, grp.CreatedAt.UTC(),
	)
	if err != nil {
		return school.Group{}, errors.Wrap(err, "creating group")
	}
	return grp, nil
}

func (repo schoolRepository) GetGroupByID(ctx context.Context, id string) (school.Group, error) {
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student_groups WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Group{}, school.ErrGroupNotFound
		}
		return school.Group{}, errors.Wrap(err, "getting group")
	}
	return row.toGroup(), nil
}

func (repo schoolRepository) QueryGroupsByTeacher(ctx context.Context, teacherID string) ([]school.Group, error) {
	var rows []groupRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM student_groups WHERE teacher_id = $1 ORDER BY created_at DESC`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return toGroups(rows), nil
}

func (repo schoolRepository) QueryGroupsByStudent(ctx context.Context, studentID string) ([]school.Group, error) {
	var rows []groupRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT g.* FROM student_groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.student_id = $1
		ORDER BY g.created_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups by student")
	}
	return toGroups(rows), nil
}

func (repo schoolRepository) UpdateGroup(ctx context.Context, grp school.Group) (school.Group, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE student_groups SET name = $1, code = $2 WHERE id = $3`, grp.Name, grp.Code, grp.ID)
	if err != nil {
		return school.Group{}, errors.Wrap(err, "updating group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Group{}, school.ErrGroupNotFound
	}
	return grp, nil
}

func (repo schoolRepository) DeleteGroup(ctx context.Context, id string) error {
	// members cascade
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM student_groups WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return nil
}

func (repo schoolRepository) AddGroupMember(ctx context.Context, member school.GroupMember) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, student_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, student_id) DO NOTHING`,
		member.ID, member.GroupID, member.StudentID, member.CreatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "adding group member")
	}
	return nil
}

func (repo schoolRepository) RemoveGroupMember(ctx context.Context, groupID, studentID string) error {
	_, err := repo.db.ExecContext(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND student_id = $2`, groupID, studentID)
	if err != nil {
		return errors.Wrap(err, "removing group member")
	}
	return nil
}

func (repo schoolRepository) IsGroupMember(ctx context.Context, groupID, studentID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND student_id = $2)`,
		groupID, studentID)
	if err != nil {
		return false, errors.Wrap(err, "checking group membership")
	}
	return exists, nil
}

// ------------------------------------------------------------------
// lessons + attendance

type lessonRow struct {
	ID        string    `db:"id"`
	SubjectID string    `db:"subject_id"`
	TeacherID string    `db:"teacher_id"`
	DateTime  time.Time `db:"date_time"`
	Topic     string    `db:"topic"`
	CreatedAt time.Time `db:"created_at"`
}

func (r lessonRow) toLesson() school.Lesson {
	return school.Lesson(r)
}

func (repo schoolRepository) CreateLesson(ctx context.Context, lsn school.Lesson) (school.Lesson, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO lessons (id, subject_id, teacher_id, date_time, topic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		lsn.ID, lsn.SubjectID, lsn.TeacherID, lsn.DateTime.UTC(), lsn.Topic, lsn.CreatedAt.UTC(),
	)
	if err != nil {
		return school.Lesson{}, errors.Wrap(err, "creating lesson")
	}
	return lsn, nil
}

func (repo schoolRepository) GetLessonByID(ctx context.Context, id string) (school.Lesson, error) {
	var row lessonRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM lessons WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Lesson{}, school.ErrLessonNotFound
		}
		return school.Lesson{}, errors.Wrap(err, "getting lesson")
	}
	return row.toLesson(), nil
}

func (repo schoolRepository) QueryLessonsByTeacher(ctx context.Context, teacherID string) ([]school.Lesson, error) {
	var rows []lessonRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM lessons WHERE teacher_id = $1 ORDER BY date_time DESC`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lsns := make([]school.Lesson, 0, len(rows))
	for _, r := range rows {
		lsns = append(lsns, r.toLesson())
	}
	return lsns, nil
}

type attendanceRow struct {
	ID         string    `db:"id"`
	LessonID   string    `db:"lesson_id"`
	StudentID  string    `db:"student_id"`
	Status     string    `db:"status"`
	RecordedAt time.Time `db:"recorded_at"`
}

func (r attendanceRow) toRecord() school.AttendanceRecord {
	return school.AttendanceRecord{
		ID:         r.ID,
		LessonID:   r.LessonID,
		StudentID:  r.StudentID,
		Status:     school.AttendanceStatus(r.Status),
		RecordedAt: r.RecordedAt,
	}
}

func toRecords(rows []attendanceRow) []school.AttendanceRecord {
	recs := make([]school.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toRecord())
	}
	return recs
}

func (repo schoolRepository) ReplaceAttendance(ctx context.Context, lessonID string, recs []school.AttendanceRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM attendance WHERE lesson_id = $1`, lessonID); err != nil {
		return errors.Wrap(err, "clearing attendance")
	}
	for _, rec := range recs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attendance (id, lesson_id, student_id, status, recorded_at)
			VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, rec.LessonID, rec.StudentID, rec.Status, rec.RecordedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting attendance record")
		}
	}
	return errors.Wrap(tx.Commit(), "committing attendance")
}

func (repo schoolRepository) QueryAttendanceByLesson(ctx context.Context, lessonID string) ([]school.AttendanceRecord, error) {
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM attendance WHERE lesson_id = $1`, lessonID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	return toRecords(rows), nil
}

func (repo schoolRepository) QueryAttendanceByStudent(ctx context.Context, studentID string) ([]school.AttendanceRecord, error) {
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM attendance WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance by student")
	}
	return toRecords(rows), nil
}

// ------------------------------------------------------------------
// assignments

type assignmentRow struct {
	ID          string      `db:"id"`
	SubjectID   string      `db:"subject_id"`
	TeacherID   string      `db:"teacher_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Deadline    time.Time   `db:"deadline"`
	MaxScore    int         `db:"max_score"`
	Attachments []byte      `db:"attachments"`
	TargetType  null.String `db:"target_type"`
	TargetID    null.String `db:"target_id"`
	IsLab       bool        `db:"is_lab"`
	LabEditor   string      `db:"lab_editor"`
	TeacherName string      `db:"teacher_name"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r assignmentRow) toAssignment() (school.Assignment, error) {
	attachments := make([]school.File, 0)
	if len(r.Attachments) > 0 {
		if err := json.Unmarshal(r.Attachments, &attachments); err != nil {
			return school.Assignment{}, errors.Wrap(err, "unmarshalling attachments")
		}
	}
	return school.Assignment{
		ID:          r.ID,
		SubjectID:   r.SubjectID,
		TeacherID:   r.TeacherID,
		Title:       r.Title,
		Description: r.Description,
		Deadline:    r.Deadline,
		MaxScore:    r.MaxScore,
		Attachments: attachments,
		TargetType:  school.TargetType(r.TargetType.String),
		TargetID:    r.TargetID.String,
		IsLab:       r.IsLab,
		LabEditor:   school.LabEditor(r.LabEditor),
		TeacherName: r.TeacherName,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func toAssignments(rows []assignmentRow) ([]school.Assignment, error) {
	asgs := make([]school.Assignment, 0, len(rows))
	for _, r := range rows {
		asg, err := r.toAssignment()
		if err != nil {
			return nil, err
		}
		asgs = append(asgs, asg)
	}
	return asgs, nil
}

const assignmentCols = `
	a.*, COALESCE(u.first_name || ' ' || u.last_name, '') AS teacher_name`

func (repo schoolRepository) CreateAssignment(ctx context.Context, asg school.Assignment) (school.Assignment, error) {
	attachments, err := json.Marshal(asg.Attachments)
	if err != nil {
		return school.Assignment{}, errors.Wrap(err, "marshalling attachments")
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO assignments (id, subject_id, teacher_id, title, description, deadline, max_score, attachments, target_type, target_id, is_lab, lab_editor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		asg.ID, asg.SubjectID, asg.TeacherID, asg.Title, asg.Description, asg.Deadline.UTC(),
		asg.MaxScore, attachments,
		null.NewString(string(asg.TargetType), asg.TargetType != school.TargetBroadcast),
		null.NewString(asg.TargetID, asg.TargetID != ""),
		asg.IsLab, asg.LabEditor, asg.CreatedAt.UTC(),
	)
	if err != nil {
		return school.Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return asg, nil
}

func (repo schoolRepository) GetAssignmentByID(ctx context.Context, id string) (school.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+assignmentCols+` FROM assignments a
		JOIN users u ON u.id = a.teacher_id
		WHERE a.id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Assignment{}, school.ErrAssignmentNotFound
		}
		return school.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return row.toAssignment()
}

func (repo schoolRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]school.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+assignmentCols+` FROM assignments a
		JOIN users u ON u.id = a.teacher_id
		WHERE a.teacher_id = $1
		ORDER BY a.created_at DESC`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return toAssignments(rows)
}

func (repo schoolRepository) QueryAssignmentsVisibleTo(ctx context.Context, studentID string) ([]school.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+assignmentCols+` FROM assignments a
		JOIN users u ON u.id = a.teacher_id
		WHERE `+visibleAssignmentsCond+`
		ORDER BY a.created_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying visible assignments")
	}
	return toAssignments(rows)
}

// ------------------------------------------------------------------
// submissions

type submissionRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	SubmittedAt  time.Time `db:"submitted_at"`
	Body         string    `db:"body"`
	Files        []byte    `db:"files"`
	ContentHTML  string    `db:"content_html"`
	SheetJSON    []byte    `db:"sheet_json"`
	IsLate       bool      `db:"is_late"`
}

func (r submissionRow) toSubmission() (school.Submission, error) {
	files := make([]school.File, 0)
	if len(r.Files) > 0 {
		if err := json.Unmarshal(r.Files, &files); err != nil {
			return school.Submission{}, errors.Wrap(err, "unmarshalling submission files")
		}
	}
	return school.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		SubmittedAt:  r.SubmittedAt,
		Text:         r.Body,
		Files:        files,
		ContentHTML:  r.ContentHTML,
		SheetJSON:    r.SheetJSON,
		IsLate:       r.IsLate,
	}, nil
}

func (repo schoolRepository) UpsertSubmission(ctx context.Context, sub school.Submission) (school.Submission, error) {
	files, err := json.Marshal(sub.Files)
	if err != nil {
		return school.Submission{}, errors.Wrap(err, "marshalling submission files")
	}
	var sheetJSON interface{}
	if len(sub.SheetJSON) > 0 {
		sheetJSON = []byte(sub.SheetJSON)
	}

	var id string
	err = repo.db.GetContext(ctx, &id, `
		INSERT INTO submissions (id, assignment_id, student_id, submitted_at, body, files, content_html, sheet_json, is_late)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (assignment_id, student_id) DO UPDATE SET
			submitted_at = EXCLUDED.submitted_at,
			body = EXCLUDED.body,
			files = EXCLUDED.files,
			content_html = EXCLUDED.content_html,
			sheet_json = EXCLUDED.sheet_json,
			is_late = EXCLUDED.is_late
		RETURNING id`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.SubmittedAt.UTC(),
		sub.Text, files, sub.ContentHTML, sheetJSON, sub.IsLate,
	)
	if err != nil {
		return school.Submission{}, errors.Wrap(err, "upserting submission")
	}
	sub.ID = id
	return sub, nil
}

func (repo schoolRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]school.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM submissions WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return toSubmissions(rows)
}

func (repo schoolRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]school.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM submissions WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions by student")
	}
	return toSubmissions(rows)
}

func toSubmissions(rows []submissionRow) ([]school.Submission, error) {
	subs := make([]school.Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := r.toSubmission()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// ------------------------------------------------------------------
// grades

type gradeRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	Score        int       `db:"score"`
	Grade        string    `db:"grade"`
	GradedAt     time.Time `db:"graded_at"`
	TeacherID    string    `db:"teacher_id"`
}

func (r gradeRow) toGrade() school.Grade {
	return school.Grade(r)
}

func toGrades(rows []gradeRow) []school.Grade {
	grds := make([]school.Grade, 0, len(rows))
	for _, r := range rows {
		grds = append(grds, r.toGrade())
	}
	return grds
}

func (repo schoolRepository) UpsertGrade(ctx context.Context, grd school.Grade) (school.Grade, error) {
	var id string
	err := repo.db.GetContext(ctx, &id, `
		INSERT INTO grades (id, assignment_id, student_id, score, grade, graded_at, teacher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (assignment_id, student_id) DO UPDATE SET
			score = EXCLUDED.score,
			grade = EXCLUDED.grade,
			graded_at = EXCLUDED.graded_at,
			teacher_id = EXCLUDED.teacher_id
		RETURNING id`,
		grd.ID, grd.AssignmentID, grd.StudentID, grd.Score, grd.Grade, grd.GradedAt.UTC(), grd.TeacherID,
	)
	if err != nil {
		return school.Grade{}, errors.Wrap(err, "upserting grade")
	}
	grd.ID = id
	return grd, nil
}

func (repo schoolRepository) QueryGradesByAssignment(ctx context.Context, assignmentID string) ([]school.Grade, error) {
	var rows []gradeRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM grades WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return toGrades(rows), nil
}

func (repo schoolRepository) QueryGradesByStudent(ctx context.Context, studentID string) ([]school.Grade, error) {
	var rows []gradeRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM grades WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades by student")
	}
	return toGrades(rows), nil
}
