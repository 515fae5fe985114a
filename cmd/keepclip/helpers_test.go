package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.klb.dev/keepclip/internal/grpcservice"
	"go.klb.dev/keepclip/internal/history"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t\tc ", 10))
	assert.Equal(t, "héll…", preview("héllo world", 5))
	assert.Equal(t, "short", preview("short", 5))
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "host:8752", withDefaultPort("host"))
	assert.Equal(t, "host:9000", withDefaultPort("host:9000"))
	assert.Equal(t, "[::1]:8752", withDefaultPort("::1"))
}

func TestIsContainerID(t *testing.T) {
	assert.True(t, isContainerID("0123456789abcdef"))
	assert.False(t, isContainerID("laptop"))
	assert.False(t, isContainerID("0123456789ABCDEF"))
}

func TestFormatEvent(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	assert.Equal(t, "08:30:00 cleared", formatEvent(&grpcservice.WatchEvent{Type: "cleared"}, now))

	e := history.NewText("hello\nworld", now)
	e.Locked = true
	r := history.ToRecord(e)
	line := formatEvent(&grpcservice.WatchEvent{Type: "changed", Entry: &r}, now)
	assert.True(t, strings.HasPrefix(line, "08:30:00 changed "+e.ID+" hello world"))
	assert.True(t, strings.HasSuffix(line, "[locked]"))

	img := history.ToRecord(history.NewImage("1.png", "abc", now))
	assert.Contains(t, formatEvent(&grpcservice.WatchEvent{Type: "removed", Entry: &img}, now), "[image 1.png]")
}
