// Package notify keeps the transient toast notifications shown in the corner
// of the screen. Each notification runs its own timers; there is no shared
// ordering beyond insertion time and no de-duplication.
package notify

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// Severity picks the toast colour and icon.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Phase is the visual lifecycle of a notification. Phases only move forward.
type Phase int

const (
	PhaseEntering Phase = iota // inserted, still off-screen
	PhaseVisible
	PhaseExiting
	PhaseRemoved
)

func (p Phase) String() string {
	switch p {
	case PhaseEntering:
		return "entering"
	case PhaseVisible:
		return "visible"
	case PhaseExiting:
		return "exiting"
	case PhaseRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Notification is one toast.
type Notification struct {
	ID        string
	Message   string
	Severity  Severity
	CreatedAt time.Time
	ExpiresAt time.Time
	Phase     Phase
}

// Timings controls the enter delay, display time before exit starts, and the
// exit window after which the toast is removed.
type Timings struct {
	Enter   time.Duration
	Display time.Duration
	Exit    time.Duration
}

// DefaultTimings matches the web client: 100ms enter, 3s display, 300ms exit.
func DefaultTimings() Timings {
	return Timings{
		Enter:   100 * time.Millisecond,
		Display: 3000 * time.Millisecond,
		Exit:    300 * time.Millisecond,
	}
}

// TransitionMsg advances one notification to the given phase.
type TransitionMsg struct {
	ID string
	To Phase
}

// Queue holds the live notifications.
type Queue struct {
	items   []Notification
	timings Timings
	clock   func() time.Time
	newID   func() string
}

// Option customizes queue construction.
type Option func(*Queue)

// WithTimings overrides the transition timings. Zero fields keep defaults.
func WithTimings(t Timings) Option {
	return func(q *Queue) {
		if t.Enter > 0 {
			q.timings.Enter = t.Enter
		}
		if t.Display > 0 {
			q.timings.Display = t.Display
		}
		if t.Exit > 0 {
			q.timings.Exit = t.Exit
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(q *Queue) {
		if gen != nil {
			q.newID = gen
		}
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		timings: DefaultTimings(),
		clock:   time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Enqueue inserts a notification and schedules its enter and exit timers.
func (q *Queue) Enqueue(message string, severity Severity) tea.Cmd {
	now := q.clock()
	n := Notification{
		ID:        q.newID(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(q.timings.Display + q.timings.Exit),
		Phase:     PhaseEntering,
	}
	q.items = append(q.items, n)
	id := n.ID
	return tea.Batch(
		tea.Tick(q.timings.Enter, func(time.Time) tea.Msg {
			return TransitionMsg{ID: id, To: PhaseVisible}
		}),
		tea.Tick(q.timings.Display, func(time.Time) tea.Msg {
			return TransitionMsg{ID: id, To: PhaseExiting}
		}),
	)
}

// Success enqueues a success toast.
func (q *Queue) Success(message string) tea.Cmd {
	return q.Enqueue(message, SeveritySuccess)
}

// Error enqueues an error toast.
func (q *Queue) Error(message string) tea.Cmd {
	return q.Enqueue(message, SeverityError)
}

// Update applies a TransitionMsg. It reports whether msg belonged to the queue.
func (q *Queue) Update(msg tea.Msg) (tea.Cmd, bool) {
	m, ok := msg.(TransitionMsg)
	if !ok {
		return nil, false
	}
	idx := q.indexOf(m.ID)
	if idx < 0 {
		return nil, true
	}
	if m.To <= q.items[idx].Phase {
		return nil, true
	}
	if m.To == PhaseRemoved {
		q.items = append(q.items[:idx], q.items[idx+1:]...)
		return nil, true
	}
	q.items[idx].Phase = m.To
	if m.To != PhaseExiting {
		return nil, true
	}
	id := m.ID
	return tea.Tick(q.timings.Exit, func(time.Time) tea.Msg {
		return TransitionMsg{ID: id, To: PhaseRemoved}
	}), true
}

// Active returns a copy of the live notifications in insertion order.
func (q *Queue) Active() []Notification {
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports how many notifications are live.
func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) indexOf(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}
