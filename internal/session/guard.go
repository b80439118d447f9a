package session

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Category is an action class with its own single-flight guard.
type Category string

const (
	CategoryMove             Category = "move"
	CategoryReset            Category = "reset"
	CategoryUndo             Category = "undo"
	CategorySkip             Category = "skip"
	CategoryConfigUpdate     Category = "configUpdate"
	CategoryDifficultyUpdate Category = "difficultyUpdate"
	CategoryInitialize       Category = "initialize"
)

// Categories lists every guarded action.
var Categories = []Category{
	CategoryMove,
	CategoryReset,
	CategoryUndo,
	CategorySkip,
	CategoryConfigUpdate,
	CategoryDifficultyUpdate,
	CategoryInitialize,
}

// guard admits one in-flight action. Busy callers are dropped; a weighted
// semaphore leaves room to queue them with Acquire later.
type guard struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

func newGuard() *guard {
	return &guard{sem: semaphore.NewWeighted(1)}
}

func (g *guard) tryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.held.Store(true)
	return true
}

func (g *guard) release() {
	g.held.Store(false)
	g.sem.Release(1)
}

func (g *guard) busy() bool {
	return g.held.Load()
}
