package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlite/ledgerlite/internal/service"
)

func TestNotifier_RendersKindAndDetail(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifierTo(&buf)

	n.Notify(service.NotifySuccess, "Sync complete", "2 pushed, 1 pulled")

	out := buf.String()
	assert.Contains(t, out, "Sync complete")
	assert.Contains(t, out, "2 pushed, 1 pulled")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestNotifier_TitleOnly(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifierTo(&buf)

	n.Notify(service.NotifyWarning, "Offline", "")

	assert.Contains(t, buf.String(), "Offline")
	assert.NotContains(t, buf.String(), ":")
}
