package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ledgerlite/ledgerlite/internal/service"
)

// Notifier renders advisory toasts to the terminal. It implements
// service.Notifier: fire-and-forget, never blocks, never returns an error to
// the caller.
type Notifier struct {
	out io.Writer
}

// NewNotifier writes to stderr so toasts do not pollute command output.
func NewNotifier() *Notifier {
	return &Notifier{out: os.Stderr}
}

// NewNotifierTo writes toasts to the given writer.
func NewNotifierTo(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

// Notify implements service.Notifier.
func (n *Notifier) Notify(kind service.NotificationKind, title, detail string) {
	msg := title
	if detail != "" {
		msg = title + ": " + detail
	}

	var rendered string
	switch kind {
	case service.NotifySuccess:
		rendered = FormatSuccess(msg)
	case service.NotifyWarning:
		rendered = FormatWarning(msg)
	case service.NotifyError:
		rendered = FormatError(msg)
	default:
		rendered = FormatInfo(msg)
	}

	_, _ = fmt.Fprintln(n.out, rendered)
}
