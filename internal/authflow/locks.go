// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import "sync"

// flowLocks serializes commands on the same flow ID so a load-modify-save
// never interleaves with another one. Entries live only while held.
type flowLocks struct {
	mu    sync.Mutex
	locks map[string]*flowLock
}

type flowLock struct {
	mu   sync.Mutex
	refs int
}

func newFlowLocks() *flowLocks {
	return &flowLocks{locks: make(map[string]*flowLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (l *flowLocks) lock(id string) func() {
	l.mu.Lock()
	fl, ok := l.locks[id]
	if !ok {
		fl = &flowLock{}
		l.locks[id] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.mu.Lock()
	return func() {
		fl.mu.Unlock()
		l.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

