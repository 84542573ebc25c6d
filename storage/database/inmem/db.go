package inmemdb

import (
	"sync"

	"github.com/umirovdev/maktab/core/auth"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

type (
	DB struct {
		mu sync.RWMutex

		users         map[string]*user.User
		refreshTokens map[string]*auth.RefreshToken

		subjects    map[string]*school.Subject
		groups      map[string]*school.Group
		members     map[string]*school.GroupMember
		lessons     map[string]*school.Lesson
		assignments map[string]*school.Assignment
		submissions map[string]*school.Submission
		grades      map[string]*school.Grade
		attendance  map[string]*school.AttendanceRecord
	}
)

func Open() (*DB, error) {
	db := &DB{
		users:         make(map[string]*user.User),
		refreshTokens: make(map[string]*auth.RefreshToken),
		subjects:      make(map[string]*school.Subject),
		groups:        make(map[string]*school.Group),
		members:       make(map[string]*school.GroupMember),
		lessons:       make(map[string]*school.Lesson),
		assignments:   make(map[string]*school.Assignment),
		submissions:   make(map[string]*school.Submission),
		grades:        make(map[string]*school.Grade),
		attendance:    make(map[string]*school.AttendanceRecord),
	}
	return db, nil
}
