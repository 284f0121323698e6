// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

// fakeHookHost is a minimal [HookHost] for unit tests that exercise [Hook]
// in isolation, recording SetPoll transitions and letting the test control
// the Shutdown outcome.
type fakeHookHost struct {
	polling      bool
	pollHistory  []bool
	shutdownFn   func(h *Hook) (bool, error)
	shutdownCall int
}

func newFakeHookHost() *fakeHookHost {
	return &fakeHookHost{
		shutdownFn: func(h *Hook) (bool, error) { return true, nil },
	}
}

func (f *fakeHookHost) SetPoll(h *Hook, want bool) {
	f.polling = want
	f.pollHistory = append(f.pollHistory, want)
}

func (f *fakeHookHost) Shutdown(h *Hook) (bool, error) {
	f.shutdownCall++
	return f.shutdownFn(h)
}

// recordingLogger is an [SLogger] test double that records every call's
// message, letting tests assert which structured events actually fired.
type recordingLogger struct {
	debugMsgs []string
	infoMsgs  []string
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.debugMsgs = append(r.debugMsgs, msg) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.infoMsgs = append(r.infoMsgs, msg) }
