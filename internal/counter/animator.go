// Package counter animates displayed integers (like and comment counts) from
// an old value to a new one with a fixed tick.
package counter

import (
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	DefaultDuration = 500 * time.Millisecond
	DefaultTick     = 16 * time.Millisecond
)

// Key identifies one on-screen counter.
type Key string

// LikeKey is the like counter of a post.
func LikeKey(postID string) Key { return Key("like:" + postID) }

// CommentKey is the comment counter of a post.
func CommentKey(postID string) Key { return Key("comment:" + postID) }

// TickMsg advances the run identified by Key and Gen.
type TickMsg struct {
	Key Key
	Gen uint64
}

type run struct {
	gen       uint64
	current   float64
	to        int
	increment float64
}

// Animator interpolates counters. Starting a new animation for a key cancels
// the one already running for it.
type Animator struct {
	duration time.Duration
	tick     time.Duration
	gens     map[Key]uint64
	runs     map[Key]*run
}

// New creates an animator. Non-positive values fall back to the defaults.
func New(duration, tick time.Duration) *Animator {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Animator{
		duration: duration,
		tick:     tick,
		gens:     map[Key]uint64{},
		runs:     map[Key]*run{},
	}
}

// Animate starts interpolating key from one value to another.
func (a *Animator) Animate(key Key, from, to int) tea.Cmd {
	a.gens[key]++
	gen := a.gens[key]
	if from == to {
		delete(a.runs, key)
		return nil
	}
	steps := float64(a.duration) / float64(a.tick)
	a.runs[key] = &run{
		gen:       gen,
		current:   float64(from),
		to:        to,
		increment: float64(to-from) / steps,
	}
	return a.schedule(key, gen)
}

// Cancel stops any running animation for key.
func (a *Animator) Cancel(key Key) {
	if _, ok := a.runs[key]; !ok {
		return
	}
	a.gens[key]++
	delete(a.runs, key)
}

// Update applies a TickMsg. It reports whether msg belonged to the animator.
func (a *Animator) Update(msg tea.Msg) (tea.Cmd, bool) {
	m, ok := msg.(TickMsg)
	if !ok {
		return nil, false
	}
	r, ok := a.runs[m.Key]
	if !ok || r.gen != m.Gen {
		return nil, true
	}
	r.current += r.increment
	target := float64(r.to)
	if (r.increment > 0 && r.current >= target) || (r.increment < 0 && r.current <= target) {
		delete(a.runs, m.Key)
		return nil, true
	}
	return a.schedule(m.Key, m.Gen), true
}

// Display returns the interpolated value while key is animating, otherwise
// fallback (the settled value held by the feed).
func (a *Animator) Display(key Key, fallback int) int {
	r, ok := a.runs[key]
	if !ok {
		return fallback
	}
	return int(math.Floor(r.current))
}

// Running reports whether key is mid-animation.
func (a *Animator) Running(key Key) bool {
	_, ok := a.runs[key]
	return ok
}

func (a *Animator) schedule(key Key, gen uint64) tea.Cmd {
	return tea.Tick(a.tick, func(time.Time) tea.Msg {
		return TickMsg{Key: key, Gen: gen}
	})
}
