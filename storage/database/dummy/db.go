package dummydb

import (
	"sync"

	"github.com/acadmeter/acadmeter/core/user"
)

// DB is an in-memory stand-in for the Postgres schema.
// A single RWMutex guards every table so that multi-table writes are atomic.
type DB struct {
	sync.RWMutex
	users       map[string]*user.User         // {id: user}
	profiles    map[user.Role]map[string]bool // {role: {profileID}}
	resetTokens map[string]*user.ResetToken   // {tokenHash: token}
	sessions    map[string]user.Session       // {tokenHash: session}
}

func Open() *DB {
	return &DB{
		users: make(map[string]*user.User),
		profiles: map[user.Role]map[string]bool{
			user.RoleTeacher: make(map[string]bool),
			user.RoleStudent: make(map[string]bool),
		},
		resetTokens: make(map[string]*user.ResetToken),
		sessions:    make(map[string]user.Session),
	}
}
