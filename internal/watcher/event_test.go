package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventDetected, "detected"},
		{EventRemoved, "removed"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.eventType.String()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvent_Creation(t *testing.T) {
	now := time.Now()
	event := Event{
		Type:      EventDetected,
		Path:      "/watch/book.epub",
		Filename:  "book.epub",
		Extension: ".epub",
		Size:      1024,
		ModTime:   now,
		Timestamp: now,
	}

	assert.Equal(t, EventDetected, event.Type)
	assert.Equal(t, "/watch/book.epub", event.Path)
	assert.Equal(t, "book.epub", event.Filename)
	assert.Equal(t, ".epub", event.Extension)
	assert.Equal(t, int64(1024), event.Size)
	assert.Equal(t, now, event.ModTime)
}

func TestEvent_RemovedEvent(t *testing.T) {
	event := Event{
		Type: EventRemoved,
		Path: "/watch/manga.cbz",
	}

	assert.Equal(t, EventRemoved, event.Type)
	assert.Equal(t, "/watch/manga.cbz", event.Path)
}
