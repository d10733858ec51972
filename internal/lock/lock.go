// Package lock provides single-flight guards that keep scan cycles from overlapping.
package lock

import (
	"context"
	"sync"
)

// Local admits one holder at a time within the process.
type Local struct {
	mu sync.Mutex
}

// NewLocal returns an unheld in-process guard.
func NewLocal() *Local {
	return &Local{}
}

// TryAcquire takes the guard without waiting. When ok is false the guard is
// held by someone else and release is nil.
func (l *Local) TryAcquire(context.Context) (release func(), ok bool, err error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
