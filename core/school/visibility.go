package school

import (
	"context"
)

// Resolver answers which assignments (and, by extension, subjects) a
// student may see. An assignment with no target is visible to everyone;
// a STUDENT target is visible to exactly that student; a GROUP target
// is visible to current members of the group. Any other target shape
// resolves to invisible.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// CanAccess reports whether studentID may see the assignment.
func (r *Resolver) CanAccess(ctx context.Context, a Assignment, studentID string) (bool, error) {
	switch a.TargetType {
	case TargetBroadcast:
		return true, nil
	case TargetStudent:
		return a.TargetID == studentID, nil
	case TargetGroup:
		return r.repo.IsGroupMember(ctx, a.TargetID, studentID)
	}
	return false, nil
}

// ListVisibleAssignments returns every assignment studentID may see,
// newest first. The result is equivalent to filtering all assignments
// through CanAccess.
func (r *Resolver) ListVisibleAssignments(ctx context.Context, studentID string) ([]Assignment, error) {
	return r.repo.QueryAssignmentsVisibleTo(ctx, studentID)
}

// VisibleSubjects returns the subjects that have at least one
// assignment visible to studentID.
func (r *Resolver) VisibleSubjects(ctx context.Context, studentID string) ([]Subject, error) {
	return r.repo.QuerySubjectsVisibleTo(ctx, studentID)
}
