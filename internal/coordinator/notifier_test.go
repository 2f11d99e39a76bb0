package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlite/ledgerlite/internal/service"
)

func TestDedupingNotifier_SuppressesRepeatsInsideWindow(t *testing.T) {
	sink := &captureNotifier{}
	n := newDedupingNotifier(sink, time.Minute)

	now := time.Now()
	n.now = func() time.Time { return now }

	n.Notify(service.NotifyInfo, "Offline", "a")
	n.Notify(service.NotifyInfo, "Offline", "b")
	assert.Len(t, sink.events, 1, "identical (kind, title) inside the window is dropped")

	// Different title or kind passes.
	n.Notify(service.NotifyInfo, "Sync started", "")
	n.Notify(service.NotifyWarning, "Offline", "")
	assert.Len(t, sink.events, 3)

	// After the window the same pair fires again.
	now = now.Add(2 * time.Minute)
	n.Notify(service.NotifyInfo, "Offline", "")
	assert.Len(t, sink.events, 4)
}

func TestDedupingNotifier_NilSink(t *testing.T) {
	n := newDedupingNotifier(nil, time.Minute)
	assert.NotPanics(t, func() {
		n.Notify(service.NotifyInfo, "anything", "")
	})
}

type panickyNotifier struct{}

func (panickyNotifier) Notify(service.NotificationKind, string, string) {
	panic("broken sink")
}

func TestDedupingNotifier_SwallowsSinkPanics(t *testing.T) {
	n := newDedupingNotifier(panickyNotifier{}, time.Minute)
	assert.NotPanics(t, func() {
		n.Notify(service.NotifyError, "boom", "")
	})
}
