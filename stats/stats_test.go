package stats

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCountsOncePerBlock(t *testing.T) {
	var got []string
	s := NewStats(func(message string, category Category) {
		got = append(got, string(category)+":"+message)
	})

	s.Record(CategoryRequest, "Blocked fetch: https://example-ads.com/test")
	s.Record(CategoryElement, "Removed element")
	s.Record(CategoryElement, "Removed element")
	s.Record(CategoryFrame, "Blocked frame")
	s.Record(CategoryScript, "Blocked script")
	s.Log(CategorySystem, "AdBlock enabled")
	s.Record(CategoryWarning, "hook unavailable")

	assert.Equal(t, Snapshot{
		ElementsRemoved: 2,
		RequestsBlocked: 1,
		ScriptsBlocked:  1,
		FramesBlocked:   1,
	}, s.Snapshot())
	assert.Equal(t, uint64(5), s.TotalBlocked())

	events := s.Events()
	require.Len(t, events, 7)
	assert.Equal(t, CategoryRequest, events[0].Category)
	assert.Equal(t, CategorySystem, events[5].Category)
	assert.Len(t, got, 7)
	assert.Equal(t, "request:Blocked fetch: https://example-ads.com/test", got[0])
}

func TestResetKeepsLog(t *testing.T) {
	s := NewStats(nil)
	s.Record(CategoryRequest, "a")
	s.Record(CategoryFrame, "b")

	s.Reset()
	assert.Equal(t, Snapshot{}, s.Snapshot())
	assert.Len(t, s.Events(), 2, "log is append-only across resets")

	s.Record(CategoryFrame, "c")
	assert.Equal(t, uint64(1), s.Snapshot().FramesBlocked)
}

func TestEventsAreCopies(t *testing.T) {
	s := NewStats(nil)
	s.Log(CategorySystem, "one")
	events := s.Events()
	events[0].Message = "changed"
	assert.Equal(t, "one", s.Events()[0].Message)
}

func TestEventsSinceAndClear(t *testing.T) {
	s := NewStats(nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Log(CategorySystem, "one")
	s.Log(CategorySystem, "two")
	s.Log(CategorySystem, "three")

	since := s.EventsSince(1)
	require.Len(t, since, 2)
	assert.Equal(t, "two", since[0].Message)
	assert.Equal(t, fixed, since[0].Time)
	assert.Nil(t, s.EventsSince(3))
	assert.Len(t, s.EventsSince(-1), 3)

	assert.Equal(t, 3, s.ClearEvents())
	assert.Empty(t, s.Events())
}

func TestSinkPanicIsSwallowed(t *testing.T) {
	s := NewStats(func(string, Category) { panic("sink failure") })
	assert.NotPanics(t, func() { s.Record(CategoryRequest, "x") })
	assert.Equal(t, uint64(1), s.Snapshot().RequestsBlocked)
	assert.Len(t, s.Events(), 1)
}

func TestConcurrentRecord(t *testing.T) {
	s := NewStats(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Record(CategoryElement, "x")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), s.Snapshot().ElementsRemoved)
	assert.Len(t, s.Events(), 800)
}

func TestWritePrometheus(t *testing.T) {
	s := NewStats(nil)
	s.Record(CategoryScript, "x")

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `adshield_blocked_total{category="script"} 1`)
	assert.Contains(t, buf.String(), `adshield_blocked_total{category="request"} 0`)
}

func TestTwoInstancesAreIndependent(t *testing.T) {
	a, b := NewStats(nil), NewStats(nil)
	a.Record(CategoryRequest, "x")
	assert.Equal(t, uint64(0), b.TotalBlocked())
}
