package database

import "sync"

// InsertGuards serialises inserts per table. Each store holds one set and
// keeps the relevant mutex locked across "INSERT" and the following
// "SELECT id ... ORDER BY id DESC LIMIT 1", so the id read back is the one
// just written even with concurrent ingestions.
type InsertGuards struct {
	Photos      sync.Mutex
	People      sync.Mutex
	Appearances sync.Mutex
	Avatars     sync.Mutex
}
