package stats

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Category 事件类别
type Category string

const (
	CategoryRequest Category = "request"
	CategoryElement Category = "element"
	CategoryScript  Category = "script"
	CategoryFrame   Category = "frame"
	CategorySystem  Category = "system"
	CategoryWarning Category = "warning"
)

// blockedMetric is the Prometheus name of the per-category block counters.
const blockedMetric = `adshield_blocked_total{category=%q}`

// Snapshot is a point-in-time copy of the block counters.
type Snapshot struct {
	ElementsRemoved uint64 `json:"elements_removed"`
	RequestsBlocked uint64 `json:"requests_blocked"`
	ScriptsBlocked  uint64 `json:"scripts_blocked"`
	FramesBlocked   uint64 `json:"frames_blocked"`
}

// Total 返回四个计数器之和
func (s Snapshot) Total() uint64 {
	return s.ElementsRemoved + s.RequestsBlocked + s.ScriptsBlocked + s.FramesBlocked
}

// Event is one entry of the activity log.
type Event struct {
	Time     time.Time `json:"time"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
}

// Sink receives every log entry as it is appended. It must not block.
type Sink func(message string, category Category)

// Stats 拦截统计
//
// Counters are atomic and may be read from any goroutine. The event log is
// append-only; Reset zeroes the counters but keeps the log.
type Stats struct {
	set      *metrics.Set
	elements *metrics.Counter
	requests *metrics.Counter
	scripts  *metrics.Counter
	frames   *metrics.Counter

	mu     sync.RWMutex
	events []Event
	sink   Sink

	now       func() time.Time
	startTime time.Time
}

// NewStats 创建统计实例，sink 可以为 nil
func NewStats(sink Sink) *Stats {
	set := metrics.NewSet()
	return &Stats{
		set:       set,
		elements:  set.NewCounter(fmt.Sprintf(blockedMetric, CategoryElement)),
		requests:  set.NewCounter(fmt.Sprintf(blockedMetric, CategoryRequest)),
		scripts:   set.NewCounter(fmt.Sprintf(blockedMetric, CategoryScript)),
		frames:    set.NewCounter(fmt.Sprintf(blockedMetric, CategoryFrame)),
		sink:      sink,
		now:       time.Now,
		startTime: time.Now(),
	}
}

// SetSink replaces the log sink.
func (s *Stats) SetSink(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Stats) counter(cat Category) *metrics.Counter {
	switch cat {
	case CategoryElement:
		return s.elements
	case CategoryRequest:
		return s.requests
	case CategoryScript:
		return s.scripts
	case CategoryFrame:
		return s.frames
	default:
		return nil
	}
}

// Record counts one blocked item of category cat and appends one log entry.
// Categories without a counter (system, warning) only append the entry.
func (s *Stats) Record(cat Category, message string) {
	if c := s.counter(cat); c != nil {
		c.Inc()
	}
	s.Log(cat, message)
}

// Log appends an entry to the activity log without touching the counters.
func (s *Stats) Log(cat Category, message string) {
	s.mu.Lock()
	s.events = append(s.events, Event{Time: s.now(), Category: cat, Message: message})
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		deliver(sink, message, cat)
	}
}

// deliver 调用外部 sink，sink 的 panic 不影响调用方
func deliver(sink Sink, message string, cat Category) {
	defer func() {
		_ = recover()
	}()
	sink(message, cat)
}

// Snapshot 返回当前计数器的副本
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ElementsRemoved: s.elements.Get(),
		RequestsBlocked: s.requests.Get(),
		ScriptsBlocked:  s.scripts.Get(),
		FramesBlocked:   s.frames.Get(),
	}
}

// TotalBlocked 返回所有类别的拦截总数
func (s *Stats) TotalBlocked() uint64 {
	return s.Snapshot().Total()
}

// Reset 将计数器清零，日志保留
func (s *Stats) Reset() {
	s.elements.Set(0)
	s.requests.Set(0)
	s.scripts.Set(0)
	s.frames.Set(0)
}

// Events returns a copy of the log, oldest first.
func (s *Stats) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsSince returns the entries after the first n, for incremental polling.
func (s *Stats) EventsSince(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(s.events) {
		return nil
	}
	out := make([]Event, len(s.events)-n)
	copy(out, s.events[n:])
	return out
}

// ClearEvents 清空日志，返回被清除的条数
func (s *Stats) ClearEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events)
	s.events = nil
	return n
}

// Uptime 返回统计实例创建以来的时长
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// WritePrometheus writes the block counters in Prometheus text format.
func (s *Stats) WritePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}
