package school

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umirovdev/maktab/core"
)

// TargetType narrows who an assignment is addressed to. The empty value
// means the assignment is broadcast to every student.
type TargetType string

const (
	TargetBroadcast TargetType = ""
	TargetGroup     TargetType = "GROUP"
	TargetStudent   TargetType = "STUDENT"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetBroadcast, TargetGroup, TargetStudent:
		return true
	}
	return false
}

// LabEditor selects the in-browser editor a lab assignment opens with.
type LabEditor string

const (
	LabEditorWord  LabEditor = "word"
	LabEditorExcel LabEditor = "excel"
)

// AttendanceStatus is the closed set of per-lesson attendance marks.
type AttendanceStatus string

const (
	AttendanceAbsent AttendanceStatus = "ABSENT"
	AttendanceOnTime AttendanceStatus = "ONTIME"
	AttendanceLate   AttendanceStatus = "LATE"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceAbsent, AttendanceOnTime, AttendanceLate:
		return true
	}
	return false
}

// FileKind is a coarse classification of an uploaded file, derived from
// its mime type.
type FileKind string

const (
	FileKindVideo    FileKind = "video"
	FileKindSlides   FileKind = "slides"
	FileKindArchive  FileKind = "archive"
	FileKindDocument FileKind = "document"
	FileKindOther    FileKind = "other"
)

// KindForMime classifies a mime type into a FileKind.
func KindForMime(mime string) FileKind {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return FileKindVideo
	case strings.Contains(mime, "presentation"):
		return FileKindSlides
	case strings.Contains(mime, "zip"), strings.Contains(mime, "rar"):
		return FileKindArchive
	case strings.Contains(mime, "pdf"), strings.Contains(mime, "word"):
		return FileKindDocument
	}
	return FileKindOther
}

const (
	// GradeFail is recorded for scores below the passing threshold.
	GradeFail = "FAIL"

	passScore = 60
)

// GradeForScore maps a 0-100 score to the grade scale.
func GradeForScore(score int) string {
	switch {
	case score < passScore:
		return GradeFail
	case score < 70:
		return "3"
	case score < 90:
		return "4"
	}
	return "5"
}

type (
	Subject struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Code      string    `json:"code"`
		TeacherID string    `json:"teacherId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Group struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Code      string    `json:"code"`
		TeacherID string    `json:"teacherId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	GroupMember struct {
		ID        string    `json:"id"`
		GroupID   string    `json:"groupId"`
		StudentID string    `json:"studentId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Lesson struct {
		ID        string    `json:"id"`
		SubjectID string    `json:"subjectId"`
		TeacherID string    `json:"teacherId"`
		DateTime  time.Time `json:"dateTime"`
		Topic     string    `json:"topic"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// File is attachment metadata; the bytes live on disk under the
	// upload dir and are served by URL.
	File struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		MimeType string   `json:"mimeType"`
		SizeKB   int64    `json:"sizeKb"`
		Kind     FileKind `json:"kind"`
		URL      string   `json:"url"`
	}

	Assignment struct {
		ID          string     `json:"id"`
		SubjectID   string     `json:"subjectId"`
		TeacherID   string     `json:"teacherId"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Deadline    time.Time  `json:"deadline"`
		MaxScore    int        `json:"maxScore"`
		Attachments []File     `json:"attachments"`
		TargetType  TargetType `json:"targetType"`
		TargetID    string     `json:"targetId,omitempty"`
		IsLab       bool       `json:"isLab"`
		LabEditor   LabEditor  `json:"labEditor,omitempty"`
		TeacherName string     `json:"teacherName,omitempty"`
		CreatedAt   time.Time  `json:"createdAt"`
	}

	Submission struct {
		ID           string          `json:"id"`
		AssignmentID string          `json:"assignmentId"`
		StudentID    string          `json:"studentId"`
		SubmittedAt  time.Time       `json:"submittedAt"`
		Text         string          `json:"text"`
		Files        []File          `json:"files"`
		ContentHTML  string          `json:"contentHtml,omitempty"`
		SheetJSON    json.RawMessage `json:"sheetJson,omitempty"`
		IsLate       bool            `json:"isLate"`
	}

	Grade struct {
		ID           string    `json:"id"`
		AssignmentID string    `json:"assignmentId"`
		StudentID    string    `json:"studentId"`
		Score        int       `json:"score"`
		Grade        string    `json:"grade"`
		GradedAt     time.Time `json:"gradedAt"`
		TeacherID    string    `json:"teacherId"`
	}

	AttendanceRecord struct {
		ID         string           `json:"id"`
		LessonID   string           `json:"lessonId"`
		StudentID  string           `json:"studentId"`
		Status     AttendanceStatus `json:"status"`
		RecordedAt time.Time        `json:"recordedAt"`
	}
)

// IsBroadcast reports whether the assignment is visible to every student.
func (a *Assignment) IsBroadcast() bool { return a.TargetType == TargetBroadcast }

// NewSubject is the payload for creating or renaming a subject.
type NewSubject struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	return validate.Struct(ns)
}

// NewGroup is the payload for creating or renaming a student group.
type NewGroup struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Code = core.CleanString(ng.Code)
	return validate.Struct(ng)
}

// NewLesson is the payload for scheduling a lesson.
type NewLesson struct {
	SubjectID string    `json:"subjectId" validate:"required"`
	DateTime  time.Time `json:"dateTime" validate:"required"`
	Topic     string    `json:"topic" validate:"required"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Topic = core.CleanString(nl.Topic)
	return validate.Struct(nl)
}

// NewAssignment is the payload for publishing an assignment. A zero
// MaxScore defaults to 100 and an unset lab editor defaults to word.
type NewAssignment struct {
	SubjectID   string     `json:"subjectId" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Deadline    time.Time  `json:"deadline" validate:"required"`
	MaxScore    int        `json:"maxScore" validate:"min=0,max=100"`
	Attachments []File     `json:"attachments"`
	TargetType  TargetType `json:"targetType" validate:"omitempty,oneof=GROUP STUDENT"`
	TargetID    string     `json:"targetId" validate:"required_with=TargetType"`
	IsLab       bool       `json:"isLab"`
	LabEditor   LabEditor  `json:"labEditor" validate:"omitempty,oneof=word excel"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.MaxScore == 0 {
		na.MaxScore = 100
	}
	if na.IsLab && na.LabEditor == "" {
		na.LabEditor = LabEditorWord
	}
	if na.TargetType == TargetBroadcast {
		na.TargetID = ""
	}
	return validate.Struct(na)
}

// NewSubmission is the payload a student submits for an assignment.
// All fields are optional; lab submissions carry ContentHTML or
// SheetJSON while regular ones carry Text and Files.
type NewSubmission struct {
	Text        string          `json:"text"`
	Files       []File          `json:"files"`
	ContentHTML string          `json:"contentHtml"`
	SheetJSON   json.RawMessage `json:"sheetJson"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

// NewGrade is the payload for grading a student's work on an assignment.
type NewGrade struct {
	StudentID string `json:"studentId" validate:"required"`
	Score     int    `json:"score" validate:"min=0,max=100"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	return validate.Struct(ng)
}

// AttendanceEntry is one row of a bulk attendance sheet.
type AttendanceEntry struct {
	StudentID string           `json:"studentId" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=ABSENT ONTIME LATE"`
}

func (ae *AttendanceEntry) Validate(validate *validator.Validate) error {
	return validate.Struct(ae)
}
