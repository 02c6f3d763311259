// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import "sync"

// tabIDs hands out small, stable integer ids for DevTools target ids.
// Ids are never reused within a process.
type tabIDs struct {
	mu       sync.Mutex
	next     int
	byTarget map[string]int
	byID     map[int]string
}

func newTabIDs() *tabIDs {
	return &tabIDs{next: 1, byTarget: map[string]int{}, byID: map[int]string{}}
}

func (t *tabIDs) idFor(target string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byTarget[target]; ok {
		return id
	}
	id := t.next
	t.next++
	t.byTarget[target] = id
	t.byID[id] = target
	return id
}

func (t *tabIDs) targetFor(id int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	target, ok := t.byID[id]
	return target, ok
}

func (t *tabIDs) lookup(target string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byTarget[target]
	return id, ok
}

func (t *tabIDs) forget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byTarget[target]; ok {
		delete(t.byID, id)
		delete(t.byTarget, target)
	}
}
