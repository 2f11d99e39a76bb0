package coordinator

import (
	"sync"
	"time"

	"github.com/ledgerlite/ledgerlite/internal/service"
)

// dedupeWindow is how long an identical (kind, title) pair is suppressed.
const dedupeWindow = 30 * time.Second

// dedupingNotifier wraps a service.Notifier and drops repeated identical
// notifications inside a short window, so flapping connectivity or a failing
// sync loop does not stack toasts.
type dedupingNotifier struct {
	inner    service.Notifier
	lastSent map[string]time.Time
	now      func() time.Time
	window   time.Duration
	mu       sync.Mutex
}

func newDedupingNotifier(inner service.Notifier, window time.Duration) *dedupingNotifier {
	if window <= 0 {
		window = dedupeWindow
	}
	return &dedupingNotifier{
		inner:    inner,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
		window:   window,
	}
}

// Notify implements service.Notifier. It never blocks and never panics, even
// when the wrapped sink does.
func (n *dedupingNotifier) Notify(kind service.NotificationKind, title, detail string) {
	if n.inner == nil {
		return
	}

	key := string(kind) + "\x00" + title

	n.mu.Lock()
	now := n.now()
	if sent, ok := n.lastSent[key]; ok && now.Sub(sent) < n.window {
		n.mu.Unlock()
		return
	}
	n.lastSent[key] = now
	n.mu.Unlock()

	defer func() { _ = recover() }()
	n.inner.Notify(kind, title, detail)
}
