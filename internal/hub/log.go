package hub

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"go.klb.dev/keepclip/internal/history"
)

const previewRunes = 120

// preview truncates s to n runes, never splitting a UTF-8 sequence.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// LogEntry logs a history event at INFO (kind, id, lock state) and DEBUG
// (text preview up to 120 chars, or the image file and hash).
func LogEntry(event string, e history.Entry) {
	slog.Info(event, "id", e.ID, "kind", e.Kind, "locked", e.Locked)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if e.Kind == history.KindText {
		slog.Debug("history entry", "id", e.ID, "preview", preview(e.Text, previewRunes))
	} else {
		slog.Debug("history entry", "id", e.ID, "file", e.File, "hash", e.Hash)
	}
}
