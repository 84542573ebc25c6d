package inmemdb

import (
	"context"
	"sort"

	"github.com/umirovdev/maktab/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

// ------------------------------------------------------------------
// subjects

func (repo *schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) GetSubjectByID(ctx context.Context, id string) (school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.subjects[id]; ok {
		return *sub, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) QuerySubjectsByTeacher(ctx context.Context, teacherID string) ([]school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]school.Subject, 0)
	for _, sub := range repo.db.subjects {
		if sub.TeacherID == teacherID {
			subs = append(subs, *sub)
		}
	}
	sortSubjects(subs)
	return subs, nil
}

func (repo *schoolRepository) QuerySubjectsVisibleTo(ctx context.Context, studentID string) ([]school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]bool)
	subs := make([]school.Subject, 0)
	for _, asg := range repo.db.assignments {
		if !repo.visible(asg, studentID) || seen[asg.SubjectID] {
			continue
		}
		if sub, ok := repo.db.subjects[asg.SubjectID]; ok {
			seen[asg.SubjectID] = true
			subs = append(subs, *sub)
		}
	}
	sortSubjects(subs)
	return subs, nil
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.subjects[sub.ID]; !ok {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.subjects, id)
	return nil
}

// ------------------------------------------------------------------
// groups

func (repo *schoolRepository) CreateGroup(ctx context.Context, grp school.Group) (school.Group, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *schoolRepository) GetGroupByID(ctx context.Context, id string) (school.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return *grp, nil
	}
	return school.Group{}, school.ErrGroupNotFound
}

func (repo *schoolRepository) QueryGroupsByTeacher(ctx context.Context, teacherID string) ([]school.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grps := make([]school.Group, 0)
	for _, grp := range repo.db.groups {
		if grp.TeacherID == teacherID {
			grps = append(grps, *grp)
		}
	}
	sort.Slice(grps, func(i, j int) bool { return grps[i].CreatedAt.After(grps[j].CreatedAt) })
	return grps, nil
}

func (repo *schoolRepository) QueryGroupsByStudent(ctx context.Context, studentID string) ([]school.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grps := make([]school.Group, 0)
	for _, member := range repo.db.members {
		if member.StudentID != studentID {
			continue
		}
		if grp, ok := repo.db.groups[member.GroupID]; ok {
			grps = append(grps, *grp)
		}
	}
	return grps, nil
}

func (repo *schoolRepository) UpdateGroup(ctx context.Context, grp school.Group) (school.Group, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.groups[grp.ID]; !ok {
		return school.Group{}, school.ErrGroupNotFound
	}
	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *schoolRepository) DeleteGroup(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for mID, member := range repo.db.members {
		if member.GroupID == id {
			delete(repo.db.members, mID)
		}
	}
	delete(repo.db.groups, id)
	return nil
}

func (repo *schoolRepository) AddGroupMember(ctx context.Context, member school.GroupMember) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.members[member.ID] = &member
	return nil
}

func (repo *schoolRepository) RemoveGroupMember(ctx context.Context, groupID, studentID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, member := range repo.db.members {
		if member.GroupID == groupID && member.StudentID == studentID {
			delete(repo.db.members, id)
		}
	}
	return nil
}

func (repo *schoolRepository) IsGroupMember(ctx context.Context, groupID, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.isMember(groupID, studentID), nil
}

func (repo *schoolRepository) isMember(groupID, studentID string) bool {
	for _, member := range repo.db.members {
		if member.GroupID == groupID && member.StudentID == studentID {
			return true
		}
	}
	return false
}

// ------------------------------------------------------------------
// lessons + attendance

func (repo *schoolRepository) CreateLesson(ctx context.Context, lsn school.Lesson) (school.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *schoolRepository) GetLessonByID(ctx context.Context, id string) (school.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return school.Lesson{}, school.ErrLessonNotFound
}

func (repo *schoolRepository) QueryLessonsByTeacher(ctx context.Context, teacherID string) ([]school.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lsns := make([]school.Lesson, 0)
	for _, lsn := range repo.db.lessons {
		if lsn.TeacherID == teacherID {
			lsns = append(lsns, *lsn)
		}
	}
	sort.Slice(lsns, func(i, j int) bool { return lsns[i].DateTime.After(lsns[j].DateTime) })
	return lsns, nil
}

func (repo *schoolRepository) ReplaceAttendance(ctx context.Context, lessonID string, recs []school.AttendanceRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, rec := range repo.db.attendance {
		if rec.LessonID == lessonID {
			delete(repo.db.attendance, id)
		}
	}
	for i := range recs {
		rec := recs[i]
		repo.db.attendance[rec.ID] = &rec
	}
	return nil
}

func (repo *schoolRepository) QueryAttendanceByLesson(ctx context.Context, lessonID string) ([]school.AttendanceRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]school.AttendanceRecord, 0)
	for _, rec := range repo.db.attendance {
		if rec.LessonID == lessonID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (repo *schoolRepository) QueryAttendanceByStudent(ctx context.Context, studentID string) ([]school.AttendanceRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]school.AttendanceRecord, 0)
	for _, rec := range repo.db.attendance {
		if rec.StudentID == studentID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

// ------------------------------------------------------------------
// assignments

func (repo *schoolRepository) CreateAssignment(ctx context.Context, asg school.Assignment) (school.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *schoolRepository) GetAssignmentByID(ctx context.Context, id string) (school.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return *asg, nil
	}
	return school.Assignment{}, school.ErrAssignmentNotFound
}

func (repo *schoolRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]school.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	asgs := make([]school.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if asg.TeacherID == teacherID {
			asgs = append(asgs, *asg)
		}
	}
	sortAssignments(asgs)
	return asgs, nil
}

func (repo *schoolRepository) QueryAssignmentsVisibleTo(ctx context.Context, studentID string) ([]school.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	asgs := make([]school.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if repo.visible(asg, studentID) {
			asgs = append(asgs, *asg)
		}
	}
	sortAssignments(asgs)
	return asgs, nil
}

func (repo *schoolRepository) visible(asg *school.Assignment, studentID string) bool {
	switch asg.TargetType {
	case school.TargetBroadcast:
		return true
	case school.TargetStudent:
		return asg.TargetID == studentID
	case school.TargetGroup:
		return repo.isMember(asg.TargetID, studentID)
	}
	return false
}

// ------------------------------------------------------------------
// submissions

func (repo *schoolRepository) UpsertSubmission(ctx context.Context, sub school.Submission) (school.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			sub.ID = existing.ID
			repo.db.submissions[sub.ID] = &sub
			return sub, nil
		}
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]school.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]school.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, *sub)
		}
	}
	return subs, nil
}

func (repo *schoolRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]school.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]school.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID {
			subs = append(subs, *sub)
		}
	}
	return subs, nil
}

// ------------------------------------------------------------------
// grades

func (repo *schoolRepository) UpsertGrade(ctx context.Context, grd school.Grade) (school.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.grades {
		if existing.AssignmentID == grd.AssignmentID && existing.StudentID == grd.StudentID {
			grd.ID = existing.ID
			repo.db.grades[grd.ID] = &grd
			return grd, nil
		}
	}
	repo.db.grades[grd.ID] = &grd
	return grd, nil
}

func (repo *schoolRepository) QueryGradesByAssignment(ctx context.Context, assignmentID string) ([]school.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grds := make([]school.Grade, 0)
	for _, grd := range repo.db.grades {
		if grd.AssignmentID == assignmentID {
			grds = append(grds, *grd)
		}
	}
	return grds, nil
}

func (repo *schoolRepository) QueryGradesByStudent(ctx context.Context, studentID string) ([]school.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grds := make([]school.Grade, 0)
	for _, grd := range repo.db.grades {
		if grd.StudentID == studentID {
			grds = append(grds, *grd)
		}
	}
	return grds, nil
}

func sortSubjects(subs []school.Subject) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
}

func sortAssignments(asgs []school.Assignment) {
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.After(asgs[j].CreatedAt) })
}
