// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"container/heap"
	"sync"
	"time"
)

// Source is the handle returned by the Add* registration methods, usable
// with [MainLoop.Remove] and [MainLoop.AdjustTimer].
type Source uint64

// sourceKind discriminates the three kinds of registration the loop
// dispatches per iteration, in the fixed order: timers, then I/O, then
// idle.
type sourceKind int

const (
	sourceIdle sourceKind = iota
	sourceTimer
	sourceIO
)

type loopSource struct {
	id      Source
	kind    sourceKind
	fn      func(data any) bool
	data    any
	destroy func(data any)

	// timer-only fields
	firstMS, periodMS int64
	deadline          time.Time
	heapIndex         int

	// io-only fields
	fd     int
	events IOEvents
	ready  IOEvents
}

// IOEvents is a bitset describing which I/O readiness conditions a
// registered source cares about.
type IOEvents uint8

const (
	IOEventRead IOEvents = 1 << iota
	IOEventWrite
)

// timerHeap is a min-heap of loopSource ordered by deadline, giving the
// main loop non-decreasing expired-timer dispatch order in O(log n).
type timerHeap []*loopSource

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex, h[j].heapIndex = i, j
}
func (h *timerHeap) Push(x any) {
	s := x.(*loopSource)
	s.heapIndex = len(*h)
	*h = append(*h, s)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.heapIndex = -1
	*h = old[:n-1]
	return s
}

// MainLoop is a single-threaded, cooperative event loop. All registration
// and dispatch methods must be called from the loop's own goroutine;
// [MainLoop.Post] is the sole exception, used to bridge a bounded set of
// deliberately-isolated background goroutines (the DNS demo's UDP reader
// and upstream exchange, the evcored HTTP bridge) back onto the loop without ever requiring the loop itself to block on a channel.
type MainLoop struct {
	// TimeNow returns the current time; overridable for deterministic
	// timer tests, mirroring the teacher's injectable TimeNow field.
	TimeNow func() time.Time

	// Logger receives structured lifecycle events.
	Logger SLogger

	nextID Source
	timers timerHeap
	io     []*loopSource
	idle   []*loopSource

	idleHooks    map[*Hook]struct{}
	idleHookList []*Hook

	pendingDestroy []pendingDestroy

	quit bool

	postMu   sync.Mutex
	postFns  []func()
}

type pendingDestroy struct {
	fn   func(data any)
	data any
}

// NewMainLoop creates a loop using cfg's TimeNow and Logger (or their
// [NewConfig] defaults if cfg is nil).
func NewMainLoop(cfg *Config) *MainLoop {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &MainLoop{
		TimeNow:   cfg.TimeNow,
		Logger:    cfg.Logger,
		idleHooks: make(map[*Hook]struct{}),
	}
}

func (l *MainLoop) now() time.Time {
	if l.TimeNow != nil {
		return l.TimeNow()
	}
	return time.Now()
}

func (l *MainLoop) log() SLogger {
	if l.Logger != nil {
		return l.Logger
	}
	return DefaultSLogger()
}

// AddIdle registers fn to run on every iteration until it returns false or
// is removed.
func (l *MainLoop) AddIdle(fn func(data any) bool, data any, destroy func(data any)) Source {
	l.nextID++
	s := &loopSource{id: l.nextID, kind: sourceIdle, fn: fn, data: data, destroy: destroy}
	l.idle = append(l.idle, s)
	return s.id
}

// AddTimer registers fn to run firstMS from now, then every periodMS
// thereafter (periodMS == 0 means one-shot) until it returns false or is
// removed.
func (l *MainLoop) AddTimer(fn func(data any) bool, data any, destroy func(data any), firstMS, periodMS int64) Source {
	l.nextID++
	s := &loopSource{
		id: l.nextID, kind: sourceTimer, fn: fn, data: data, destroy: destroy,
		firstMS: firstMS, periodMS: periodMS,
		deadline: l.now().Add(time.Duration(firstMS) * time.Millisecond),
	}
	heap.Push(&l.timers, s)
	return s.id
}

// AddIO registers fn to run when fd satisfies events. Actual OS readiness
// multiplexing is outside this component's scope (§1: "the spec does not
// mandate how readiness is obtained from the OS"); callers drive dispatch
// by calling [MainLoop.DispatchIO] once they have polled fd externally, or
// embed sources in a [Stream]'s hooks instead of using this directly.
func (l *MainLoop) AddIO(fd int, events IOEvents, fn func(data any) bool, data any, destroy func(data any)) Source {
	l.nextID++
	s := &loopSource{id: l.nextID, kind: sourceIO, fn: fn, data: data, destroy: destroy, fd: fd, events: events}
	l.io = append(l.io, s)
	return s.id
}

// DispatchIO marks every AddIO source registered on fd as ready for
// whichever of events it was registered to watch; the next RunOnce fires
// it exactly once and clears readiness until the caller reports it ready
// again. A source not registered for fd, or registered for events that
// don't overlap, is left untouched.
func (l *MainLoop) DispatchIO(fd int, events IOEvents) {
	for _, s := range l.io {
		if s.fd != fd {
			continue
		}
		if matched := s.events & events; matched != 0 {
			s.ready |= matched
		}
	}
}

// Remove unregisters source, running its destroy callback exactly once.
func (l *MainLoop) Remove(source Source) {
	if l.removeFromTimers(source) {
		return
	}
	if l.removeFromSlice(&l.io, source) {
		return
	}
	l.removeFromSlice(&l.idle, source)
}

func (l *MainLoop) removeFromTimers(source Source) bool {
	for i, s := range l.timers {
		if s.id == source {
			heap.Remove(&l.timers, i)
			l.runDestroy(s)
			return true
		}
	}
	return false
}

func (l *MainLoop) removeFromSlice(slice *[]*loopSource, source Source) bool {
	for i, s := range *slice {
		if s.id == source {
			*slice = append((*slice)[:i], (*slice)[i+1:]...)
			l.runDestroy(s)
			return true
		}
	}
	return false
}

func (l *MainLoop) runDestroy(s *loopSource) {
	if s.destroy != nil {
		s.destroy(s.data)
	}
}

// AdjustTimer changes a timer source's schedule without losing its
// identity or destroy contract.
func (l *MainLoop) AdjustTimer(source Source, firstMS, periodMS int64) {
	for _, s := range l.timers {
		if s.id == source {
			s.firstMS, s.periodMS = firstMS, periodMS
			s.deadline = l.now().Add(time.Duration(firstMS) * time.Millisecond)
			heap.Fix(&l.timers, s.heapIndex)
			return
		}
	}
}

// Post schedules fn to run on the loop goroutine at the start of the next
// [MainLoop.RunOnce] iteration. It is the only method on this type safe to
// call from a goroutine other than the one driving the loop.
func (l *MainLoop) Post(fn func()) {
	l.postMu.Lock()
	l.postFns = append(l.postFns, fn)
	l.postMu.Unlock()
}

func (l *MainLoop) drainPosted() {
	l.postMu.Lock()
	fns := l.postFns
	l.postFns = nil
	l.postMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// registerIdleHook adds h to the idle-notify set; a no-op if already
// registered.
func (l *MainLoop) registerIdleHook(h *Hook) {
	if _, ok := l.idleHooks[h]; ok {
		return
	}
	l.idleHooks[h] = struct{}{}
	l.idleHookList = append(l.idleHookList, h)
}

// unregisterIdleHook removes h from the idle-notify set; a no-op if absent.
func (l *MainLoop) unregisterIdleHook(h *Hook) {
	if _, ok := l.idleHooks[h]; !ok {
		return
	}
	delete(l.idleHooks, h)
	for i, cur := range l.idleHookList {
		if cur == h {
			l.idleHookList = append(l.idleHookList[:i], l.idleHookList[i+1:]...)
			break
		}
	}
}

// deferDestroy queues a destroy call to run at the start or end of the
// next idle pass, used when a hook is untrapped while mid-notification.
func (l *MainLoop) deferDestroy(fn func(data any), data any) {
	l.pendingDestroy = append(l.pendingDestroy, pendingDestroy{fn: fn, data: data})
}

func (l *MainLoop) drainPendingDestroy() {
	if len(l.pendingDestroy) == 0 {
		return
	}
	pending := l.pendingDestroy
	l.pendingDestroy = nil
	for _, p := range pending {
		p.fn(p.data)
	}
}

// Quit requests that [MainLoop.Run] stop after the current iteration.
func (l *MainLoop) Quit() {
	l.quit = true
}

// RunOnce executes one iteration: drain posted callbacks, fire expired
// timers in non-decreasing deadline order, fire ready I/O sources in
// registration order, run the idle-notify hook pass, then run plain idle
// callbacks. It returns true if any source remains registered (idle pass
// included) so a caller can decide whether to keep calling RunOnce.
func (l *MainLoop) RunOnce() bool {
	l.drainPosted()

	l.dispatchTimers()
	l.dispatchIO()
	l.dispatchIdleHooks()
	l.dispatchIdle()

	return len(l.timers) > 0 || len(l.io) > 0 || len(l.idle) > 0 || len(l.idleHookList) > 0
}

func (l *MainLoop) dispatchTimers() {
	now := l.now()
	for len(l.timers) > 0 && !l.timers[0].deadline.After(now) {
		s := l.timers[0]
		cont := s.fn(s.data)
		// Re-check: fn may have removed or rescheduled s itself (e.g.
		// Remove or AdjustTimer called from within the callback).
		if len(l.timers) == 0 || l.timers[0] != s || s.deadline.After(now) {
			continue
		}
		heap.Pop(&l.timers)
		if cont && s.periodMS > 0 {
			s.deadline = now.Add(time.Duration(s.periodMS) * time.Millisecond)
			heap.Push(&l.timers, s)
		} else {
			l.runDestroy(s)
		}
	}
}

func (l *MainLoop) dispatchIO() {
	sources := l.io
	for _, s := range sources {
		if s.ready == 0 {
			continue
		}
		if !l.stillRegistered(&l.io, s.id) {
			continue
		}
		s.ready = 0
		l.log().Debug("loopDispatchIO", "fd", s.fd)
		cont := s.fn(s.data)
		if !cont {
			l.removeFromSlice(&l.io, s.id)
		}
	}
}

func (l *MainLoop) dispatchIdle() {
	sources := l.idle
	for _, s := range sources {
		if !l.stillRegistered(&l.idle, s.id) {
			continue
		}
		cont := s.fn(s.data)
		if !cont {
			l.removeFromSlice(&l.idle, s.id)
		}
	}
}

func (l *MainLoop) stillRegistered(slice *[]*loopSource, id Source) bool {
	for _, s := range *slice {
		if s.id == id {
			return true
		}
	}
	return false
}

// dispatchIdleHooks runs the idle-notify pass described in §4.3: notify
// every IDLE_NOTIFY∧HAS_POLL hook once, draining the deferred-destroy
// queue both before and after.
func (l *MainLoop) dispatchIdleHooks() {
	l.drainPendingDestroy()
	hooks := make([]*Hook, len(l.idleHookList))
	copy(hooks, l.idleHookList)
	for _, h := range hooks {
		if _, ok := l.idleHooks[h]; !ok {
			continue // unregistered mid-pass
		}
		h.Notify()
	}
	l.drainPendingDestroy()
}

// Run repeatedly calls RunOnce until Quit is called or no sources remain
// registered.
func (l *MainLoop) Run() {
	l.quit = false
	for !l.quit {
		if !l.RunOnce() {
			return
		}
	}
}
