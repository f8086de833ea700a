// Package workerpool dispatches squad assignments to remote workers over
// WebSocket connections, with an embedded runner as fallback when no
// workers are connected.
package workerpool

import "sync"

// SlotPool manages a fixed number of task slots
type SlotPool struct {
	maxTasks       int
	available      int
	mu             sync.Mutex
	onSlotsChanged func(available int) // Callback when slots change
}

// NewSlotPool creates a pool with the given capacity
func NewSlotPool(maxTasks int) *SlotPool {
	return &SlotPool{
		maxTasks:  maxTasks,
		available: maxTasks,
	}
}

// SetOnSlotsChanged sets a callback to be invoked when slot availability changes
func (p *SlotPool) SetOnSlotsChanged(callback func(available int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSlotsChanged = callback
}

// Acquire tries to claim a task slot. Returns true if successful.
func (p *SlotPool) Acquire() bool {
	p.mu.Lock()
	if p.available <= 0 {
		p.mu.Unlock()
		return false
	}
	p.available--
	callback := p.onSlotsChanged
	available := p.available
	p.mu.Unlock()

	// Notify outside of lock to avoid deadlock
	if callback != nil {
		callback(available)
	}
	return true
}

// Release returns a task slot to the pool.
func (p *SlotPool) Release() {
	p.mu.Lock()
	if p.available < p.maxTasks {
		p.available++
	}
	callback := p.onSlotsChanged
	available := p.available
	p.mu.Unlock()

	if callback != nil {
		callback(available)
	}
}

// Available returns the number of free slots.
func (p *SlotPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// MaxTasks returns the pool capacity.
func (p *SlotPool) MaxTasks() int {
	return p.maxTasks
}
