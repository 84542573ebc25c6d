package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

// seed loads a small demo dataset: one teacher, one student, a group
// and a few subjects with assignments. Safe to run more than once; a
// second run fails on the username uniqueness check and reports it.
func (cli *commandLine) seed() error {
	ctx := context.Background()
	now := time.Now().UTC()

	teacher := user.User{
		ID:        uuid.New().String(),
		Username:  "teacher",
		FirstName: "Laylo",
		LastName:  "Karimova",
		Role:      user.RoleTeacher,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := teacher.SetPassword("Teacher123!"); err != nil {
		return err
	}
	if _, err := cli.usrRepo.CreateUser(ctx, teacher); err != nil {
		return err
	}

	student := user.User{
		ID:                 uuid.New().String(),
		Username:           "student",
		FirstName:          "Aziz",
		LastName:           "Saidov",
		Role:               user.RoleStudent,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := student.SetPassword("Student123!"); err != nil {
		return err
	}
	if _, err := cli.usrRepo.CreateUser(ctx, student); err != nil {
		return err
	}

	group := school.Group{
		ID:        uuid.New().String(),
		Name:      "Group A",
		Code:      "GRP-A",
		TeacherID: teacher.ID,
		CreatedAt: now,
	}
	if _, err := cli.schoolRepo.CreateGroup(ctx, group); err != nil {
		return err
	}
	member := school.GroupMember{
		ID:        uuid.New().String(),
		GroupID:   group.ID,
		StudentID: student.ID,
		CreatedAt: now,
	}
	if err := cli.schoolRepo.AddGroupMember(ctx, member); err != nil {
		return err
	}

	subjects := []school.Subject{
		{ID: uuid.New().String(), Name: "Applied Mathematics", Code: "MATH-301", TeacherID: teacher.ID, CreatedAt: now},
		{ID: uuid.New().String(), Name: "UX Foundations", Code: "UX-220", TeacherID: teacher.ID, CreatedAt: now},
		{ID: uuid.New().String(), Name: "Academic English", Code: "ENG-110", TeacherID: teacher.ID, CreatedAt: now},
	}
	for _, sub := range subjects {
		if _, err := cli.schoolRepo.CreateSubject(ctx, sub); err != nil {
			return err
		}
	}

	assignments := []school.Assignment{
		{
			ID:          uuid.New().String(),
			SubjectID:   subjects[0].ID,
			TeacherID:   teacher.ID,
			Title:       "Linear regression lab",
			Description: "Submit analysis with charts and summary.",
			Deadline:    now.Add(5 * 24 * time.Hour),
			MaxScore:    100,
			LabEditor:   school.LabEditorWord,
			Attachments: []school.File{
				{ID: uuid.New().String(), Name: "dataset.csv", MimeType: "text/csv", SizeKB: 420, Kind: school.FileKindOther},
				{ID: uuid.New().String(), Name: "lab-instructions.pdf", MimeType: "application/pdf", SizeKB: 860, Kind: school.FileKindDocument},
			},
			CreatedAt: now,
		},
		{
			ID:          uuid.New().String(),
			SubjectID:   subjects[1].ID,
			TeacherID:   teacher.ID,
			Title:       "Prototype critique",
			Description: "Upload critique with insights.",
			Deadline:    now.Add(-24 * time.Hour),
			MaxScore:    100,
			LabEditor:   school.LabEditorWord,
			Attachments: []school.File{
				{ID: uuid.New().String(), Name: "critique-session.mp4", MimeType: "video/mp4", SizeKB: 12450, Kind: school.FileKindVideo},
			},
			CreatedAt: now,
		},
		{
			ID:          uuid.New().String(),
			SubjectID:   subjects[2].ID,
			TeacherID:   teacher.ID,
			Title:       "Essay outline",
			Description: "Submit outline and thesis.",
			Deadline:    now.Add(10 * 24 * time.Hour),
			MaxScore:    100,
			LabEditor:   school.LabEditorWord,
			Attachments: []school.File{
				{
					ID:       uuid.New().String(),
					Name:     "outline-template.pptx",
					MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
					SizeKB:   540,
					Kind:     school.FileKindSlides,
				},
			},
			CreatedAt: now,
		},
	}
	for _, asg := range assignments {
		if _, err := cli.schoolRepo.CreateAssignment(ctx, asg); err != nil {
			return err
		}
	}

	logger.Println("Seed complete.")
	return nil
}
