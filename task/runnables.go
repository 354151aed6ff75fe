package task

import (
	"sync"

	"github.com/risetechapps/jobchain/id"
)

// Runnables keeps the in-process runnable behind each task record. Records
// can outlive the process; runnables cannot.
// It is safe for concurrent use.
type Runnables struct {
	mu sync.RWMutex
	m  map[id.TaskID]Runnable
}

// NewRunnables creates an empty table.
func NewRunnables() *Runnables {
	return &Runnables{m: make(map[id.TaskID]Runnable)}
}

// Put stores r under taskID.
func (t *Runnables) Put(taskID id.TaskID, r Runnable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[taskID] = r
}

// Get returns the runnable of taskID.
func (t *Runnables) Get(taskID id.TaskID) (Runnable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.m[taskID]
	return r, ok
}

// Delete forgets the runnable of taskID.
func (t *Runnables) Delete(taskID id.TaskID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, taskID)
}

// Len returns the number of runnables held.
func (t *Runnables) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
