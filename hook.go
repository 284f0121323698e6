// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"errors"
	"log/slog"
)

var (
	errAlreadyTrapped = errors.New("hook already trapped")
	errNotAvailable   = errors.New("hook not available")
)

// HookFlags is a bitset over a [Hook]'s lifecycle state.
type HookFlags uint32

const (
	// FlagAvailable is set while the hook can still fire a ready event.
	FlagAvailable HookFlags = 1 << iota
	// FlagNeverAutoShutsDown suppresses automatic shutdown propagation
	// that some hosts would otherwise apply (e.g. a write-hook that must
	// stay alive after its read side shuts down).
	FlagNeverAutoShutsDown
	// FlagCanHaveShutdownError marks a hook whose host shutdown routine
	// may legitimately report an error without that being a bug.
	FlagCanHaveShutdownError
	// FlagIdleNotify marks the hook as always-ready: it is notified on
	// every main loop iteration rather than only on host-signalled
	// readiness.
	FlagIdleNotify
	// FlagJustNeverBlocks marks a hook whose idle-notify status can never
	// be cleared once set (see [Hook.MarkNeverBlocks]).
	FlagJustNeverBlocks
	// FlagCanDeferShutdown allows the host's Shutdown to report "not yet"
	// and call [Hook.NotifyShutdown] later once it actually completes.
	FlagCanDeferShutdown
	// FlagShuttingDown is set between [Hook.Shutdown] being called and
	// the terminal [Hook.NotifyShutdown] actually firing.
	FlagShuttingDown
	// FlagHasPoll mirrors whether the host currently has this hook
	// registered for readiness (SetPoll(true) was the last call made).
	FlagHasPoll
	// FlagIsNotifying is set for the duration of a ready callback.
	FlagIsNotifying
	// FlagIsNotifyingShutdown is set for the duration of the shutdown
	// callback.
	FlagIsNotifyingShutdown
	// FlagBlockedNotify records that a ready notification arrived while
	// one was already in flight (or while blocked) and must be replayed.
	FlagBlockedNotify
	// FlagBlockedShutdownNotify records that a shutdown notification
	// arrived while a ready notification was in flight.
	FlagBlockedShutdownNotify
	// FlagUntrappedDuringNotify records that the callback untrapped its
	// own hook, so the notifier must not also auto-untrap on return.
	FlagUntrappedDuringNotify
)

// HookHost is implemented by the object that embeds a [Hook]. It is the
// bridge between hook-level bookkeeping and host-specific I/O readiness
// and shutdown mechanics.
type HookHost interface {
	// SetPoll is called whenever the hook's readiness-eligibility changes.
	// want is true when the host should start watching for readiness and
	// calling [Hook.Notify], false when it should stop.
	SetPoll(h *Hook, want bool)

	// Shutdown performs the host-specific teardown for this hook. It
	// returns (true, err) when shutdown completed synchronously (err, if
	// non-nil, is the terminal shutdown error), or (false, nil) to defer
	// completion — valid only when [FlagCanDeferShutdown] is set, in
	// which case the host must call [Hook.NotifyShutdown] itself once
	// the deferred work finishes.
	Shutdown(h *Hook) (bool, error)
}

// Hook is a reentrancy-safe, edge-triggered callback slot embedded in a
// host object (a [Stream], a codec stream, a listener, ...). The flag
// constants above and the method docs below describe its state machine.
//
// Not safe for concurrent use; hooks are always driven from the main loop
// goroutine, with [MainLoop.Post] as the sole cross-goroutine bridge.
type Hook struct {
	flags      HookFlags
	blockCount uint16

	onReady    func(data any) bool
	onShutdown func(data any) bool
	userData   any
	destroy    func(data any)

	host HookHost
	loop *MainLoop

	logger     SLogger
	classifier ErrClassifier
}

// NewHook creates an available, untrapped hook owned by host. loop may be
// nil for hooks that never use idle-notify (tests exercising Hook in
// isolation commonly do this). The hook logs through [DefaultSLogger]
// (a no-op) until [Hook.SetLogger] is called.
func NewHook(loop *MainLoop, host HookHost) *Hook {
	return &Hook{
		flags:      FlagAvailable,
		loop:       loop,
		host:       host,
		logger:     DefaultSLogger(),
		classifier: DefaultErrClassifier,
	}
}

// SetLogger replaces the hook's logger. A nil logger is rejected (left
// unchanged) rather than panicking on the next notify.
func (h *Hook) SetLogger(logger SLogger) {
	if logger == nil {
		return
	}
	h.logger = logger
}

// SetClassifier replaces the hook's error classifier, used to label a
// host shutdown error for structured logging. A nil classifier is
// rejected (left unchanged).
func (h *Hook) SetClassifier(classifier ErrClassifier) {
	if classifier == nil {
		return
	}
	h.classifier = classifier
}

// Available reports whether the hook can still produce a ready event.
func (h *Hook) Available() bool { return h.flags&FlagAvailable != 0 }

// ShuttingDown reports whether shutdown has been requested but not yet
// delivered to [Hook.NotifyShutdown].
func (h *Hook) ShuttingDown() bool { return h.flags&FlagShuttingDown != 0 }

// Trapped reports whether a callback set is currently installed.
func (h *Hook) Trapped() bool { return h.onReady != nil || h.onShutdown != nil }

// HasPoll reports whether the host currently has this hook registered for
// readiness.
func (h *Hook) HasPoll() bool { return h.flags&FlagHasPoll != 0 }

// Flags returns the raw flag bitset, for tests asserting exact state.
func (h *Hook) Flags() HookFlags { return h.flags }

// Trap installs a callback set. onReady is required; onShutdown, data, and
// destroy are optional (nil is valid). Trap fails if the hook is already
// trapped or not [FlagAvailable].
func (h *Hook) Trap(onReady func(data any) bool, onShutdown func(data any) bool, data any, destroy func(data any)) error {
	if h.Trapped() {
		return NewError(ErrInvalidArgument, "hook.trap", errAlreadyTrapped)
	}
	if h.flags&FlagAvailable == 0 {
		return NewError(ErrInvalidArgument, "hook.trap", errNotAvailable)
	}
	h.onReady = onReady
	h.onShutdown = onShutdown
	h.userData = data
	h.destroy = destroy
	h.updatePollAndIdle()
	return nil
}

// Untrap removes the installed callback set. If called while a callback
// from this same hook is on the call stack (reentrant untrap), destroy is
// deferred until that notification returns.
func (h *Hook) Untrap() {
	if !h.Trapped() {
		return
	}
	if h.flags&(FlagIsNotifying|FlagIsNotifyingShutdown) != 0 {
		h.flags |= FlagUntrappedDuringNotify
	}
	h.clearTrap()
	h.updatePollAndIdle()
}

// Block increments the block count, suppressing notification and polling
// until a matching [Hook.Unblock].
func (h *Hook) Block() {
	h.blockCount++
	h.updatePollAndIdle()
}

// Unblock decrements the block count. It is a no-op (not a panic) when
// already at zero, since shutdown paths may race with a final unblock.
func (h *Hook) Unblock() {
	if h.blockCount == 0 {
		return
	}
	h.blockCount--
	h.updatePollAndIdle()
}

// MarkIdleNotify makes the hook always-ready: notified on every main loop
// iteration while trapped, in addition to host-signalled readiness.
func (h *Hook) MarkIdleNotify() {
	h.flags |= FlagIdleNotify
	h.updatePollAndIdle()
}

// ClearIdleNotify reverts [Hook.MarkIdleNotify]. It is rejected (a no-op)
// once [Hook.MarkNeverBlocks] has been called.
func (h *Hook) ClearIdleNotify() {
	if h.flags&FlagJustNeverBlocks != 0 {
		return
	}
	h.flags &^= FlagIdleNotify
	h.updatePollAndIdle()
}

// MarkNeverBlocks is [Hook.MarkIdleNotify] plus a latch that rejects all
// future [Hook.ClearIdleNotify] calls.
func (h *Hook) MarkNeverBlocks() {
	h.flags |= FlagIdleNotify | FlagJustNeverBlocks
	h.updatePollAndIdle()
}

// MarkCanDeferShutdown allows the host's Shutdown to report completion
// asynchronously (see [HookHost.Shutdown]).
func (h *Hook) MarkCanDeferShutdown() {
	h.flags |= FlagCanDeferShutdown
}

// Shutdown requests host-specific teardown. It returns true unless the
// host's shutdown routine reported a genuine error; a host that defers
// completion (valid only with [FlagCanDeferShutdown]) also reports true,
// since deferral is not a failure, and later calls [Hook.NotifyShutdown]
// itself.
func (h *Hook) Shutdown() (bool, error) {
	if h.flags&FlagAvailable == 0 || h.flags&FlagShuttingDown != 0 {
		return true, nil
	}
	h.flags |= FlagShuttingDown
	completed, err := h.host.Shutdown(h)
	h.flags &^= FlagAvailable
	if err != nil {
		h.logger.Info("hookShutdownError", slog.String("label", h.classifier.Classify(err)))
	}
	if !completed && h.flags&FlagCanDeferShutdown != 0 {
		return true, nil
	}
	h.NotifyShutdown()
	return err == nil, err
}

// Notify is the host-facing entry point for a ready event. It is a no-op
// if the hook is not [FlagAvailable] (rule: a hook that is not available
// never fires its callback). If a notification is already in flight
// (reentrant call, possibly from within the callback itself), the call is
// recorded via [FlagBlockedNotify] and replayed once the in-flight
// notification returns. A call made while the hook is blocked sets the
// same flag, but [Hook.Unblock] does not replay it; the callback runs
// again only on a later Notify.
func (h *Hook) Notify() {
	if h.flags&FlagAvailable == 0 {
		return
	}
	if h.blockCount > 0 || h.flags&(FlagIsNotifying|FlagIsNotifyingShutdown) != 0 {
		h.flags |= FlagBlockedNotify
		return
	}
	h.flags &^= FlagBlockedNotify
	h.flags |= FlagIsNotifying
	spanID := NewSpanID()
	h.logger.Debug("hookNotifyStart", slog.String("spanID", spanID))
	onReady := h.onReady
	data := h.userData
	cont := true
	if onReady != nil {
		cont = onReady(data)
	}
	h.flags &^= FlagIsNotifying
	h.logger.Debug("hookNotifyDone", slog.String("spanID", spanID), slog.Bool("continue", cont))

	if !cont && h.flags&FlagUntrappedDuringNotify == 0 {
		h.clearTrap()
	}
	h.flags &^= FlagUntrappedDuringNotify
	h.updatePollAndIdle()

	switch {
	case h.flags&FlagBlockedShutdownNotify != 0:
		h.flags &^= FlagBlockedShutdownNotify
		h.NotifyShutdown()
	case h.flags&FlagBlockedNotify != 0:
		h.Notify()
	}
}

// NotifyShutdown is the host-facing entry point for the terminal shutdown
// event. It is never re-entered: a call while already notifying shutdown
// is a no-op. A call while a ready notification is in flight is deferred
// via [FlagBlockedShutdownNotify] and replayed when that notification
// returns.
func (h *Hook) NotifyShutdown() {
	if h.flags&FlagIsNotifyingShutdown != 0 {
		return
	}
	if h.flags&FlagIsNotifying != 0 {
		h.flags |= FlagBlockedShutdownNotify
		return
	}
	h.flags &^= FlagIdleNotify
	h.flags &^= FlagAvailable
	h.flags &^= FlagShuttingDown
	h.flags |= FlagIsNotifyingShutdown

	spanID := NewSpanID()
	h.logger.Info("hookShutdownNotifyStart", slog.String("spanID", spanID))
	onShutdown := h.onShutdown
	data := h.userData
	cont := false
	if onShutdown != nil {
		cont = onShutdown(data)
	}
	h.flags &^= FlagIsNotifyingShutdown
	h.logger.Info("hookShutdownNotifyDone", slog.String("spanID", spanID), slog.Bool("continue", cont))

	if !cont && h.flags&FlagUntrappedDuringNotify == 0 {
		h.clearTrap()
	}
	h.flags &^= FlagUntrappedDuringNotify
	h.updatePollAndIdle()
}

// clearTrap resets the callback set and, if not mid-notification, runs
// destroy immediately; otherwise it defers destroy to the main loop's
// pending-destroy queue, drained at the start and end of each idle pass.
func (h *Hook) clearTrap() {
	data := h.userData
	destroy := h.destroy
	h.onReady = nil
	h.onShutdown = nil
	h.userData = nil
	h.destroy = nil
	h.flags &^= FlagIdleNotify | FlagJustNeverBlocks

	if destroy == nil {
		return
	}
	if h.flags&(FlagIsNotifying|FlagIsNotifyingShutdown) != 0 && h.loop != nil {
		h.loop.deferDestroy(destroy, data)
		return
	}
	destroy(data)
}

// updatePollAndIdle recomputes [FlagHasPoll] from trapped/available/block
// state, informs the host on change, and keeps the owning loop's
// idle-notify registration for this hook in sync.
func (h *Hook) updatePollAndIdle() {
	wantPoll := h.Trapped() && h.flags&FlagAvailable != 0 && h.blockCount == 0
	hasPoll := h.flags&FlagHasPoll != 0
	if wantPoll != hasPoll {
		if wantPoll {
			h.flags |= FlagHasPoll
		} else {
			h.flags &^= FlagHasPoll
		}
		if h.host != nil {
			h.host.SetPoll(h, wantPoll)
		}
	}
	if h.loop == nil {
		return
	}
	if h.flags&FlagIdleNotify != 0 && h.flags&FlagHasPoll != 0 {
		h.loop.registerIdleHook(h)
	} else {
		h.loop.unregisterIdleHook(h)
	}
}
