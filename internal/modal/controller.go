// Package modal owns which overlay is open and which entity it targets.
//
// The controller is the only place that knows the active modal; submit
// handlers ask it for the target instead of keeping their own copy.
package modal

import (
	"context"
	"strings"
)

// Kind names an overlay.
type Kind int

const (
	KindNone Kind = iota
	KindComments
	KindUpdatePost
	KindChangePassword
	KindShare
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindComments:
		return "comments"
	case KindUpdatePost:
		return "updatePost"
	case KindChangePassword:
		return "changePassword"
	case KindShare:
		return "share"
	default:
		return "unknown"
	}
}

// NeedsTarget reports whether the kind acts on a specific post.
func (k Kind) NeedsTarget() bool {
	return k == KindComments || k == KindUpdatePost
}

// State is the observable modal state. Generation increases every time the
// modal opens, closes, or is retargeted, so work started under an older
// generation can tell it is stale.
type State struct {
	Kind       Kind
	TargetID   string
	Open       bool
	Generation uint64
}

// ClickTarget says where a pointer click landed relative to the modal.
type ClickTarget int

const (
	TargetContent ClickTarget = iota
	TargetBackdrop
)

// CloseHook runs after a modal closes with the state it had while open.
type CloseHook func(closed State)

// Controller implements the Closed -> Open(kind, id) -> Closed machine.
type Controller struct {
	state  State
	hooks  []CloseHook
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a closed controller. Contexts handed out by Context
// derive from parent.
func NewController(parent context.Context) *Controller {
	if parent == nil {
		parent = context.Background()
	}
	return &Controller{parent: parent}
}

// OnClose registers a hook invoked on every close.
func (c *Controller) OnClose(hook CloseHook) {
	if hook != nil {
		c.hooks = append(c.hooks, hook)
	}
}

// Current returns the modal state.
func (c *Controller) Current() State {
	return c.state
}

// IsOpen reports whether kind is the open modal.
func (c *Controller) IsOpen(kind Kind) bool {
	return c.state.Open && c.state.Kind == kind
}

// IsCurrent reports whether a result started under (kind, targetID, gen)
// still belongs to what is on screen.
func (c *Controller) IsCurrent(kind Kind, targetID string, gen uint64) bool {
	return c.state.Open && c.state.Kind == kind && c.state.TargetID == targetID && c.state.Generation == gen
}

// Context is cancelled when the current modal closes or is retargeted.
// With no modal open it returns the parent context.
func (c *Controller) Context() context.Context {
	if !c.state.Open || c.ctx == nil {
		return c.parent
	}
	return c.ctx
}

// Open shows the modal of kind for entityID. It is a no-op returning false
// when a different kind is already open or when the target requirement of
// kind is not met. Reopening the same kind refreshes the target.
func (c *Controller) Open(kind Kind, entityID string) bool {
	if kind == KindNone {
		return false
	}
	entityID = strings.TrimSpace(entityID)
	if kind.NeedsTarget() {
		if entityID == "" {
			return false
		}
	} else {
		entityID = ""
	}
	if c.state.Open {
		if c.state.Kind != kind {
			return false
		}
		if c.state.TargetID == entityID {
			return true
		}
	}
	c.resetContext()
	c.state = State{
		Kind:       kind,
		TargetID:   entityID,
		Open:       true,
		Generation: c.state.Generation + 1,
	}
	return true
}

// Close hides the open modal and clears its target. Closing with nothing
// open does nothing and returns the closed state.
func (c *Controller) Close() State {
	if !c.state.Open {
		return c.state
	}
	closed := c.state
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = nil, nil
	c.state = State{Kind: KindNone, Generation: closed.Generation + 1}
	for _, hook := range c.hooks {
		hook(closed)
	}
	return closed
}

// HandleKey closes the open modal on Escape. It reports whether the key was
// consumed; at most one modal closes per key press.
func (c *Controller) HandleKey(key string) bool {
	if key != "esc" || !c.state.Open {
		return false
	}
	c.Close()
	return true
}

// HandleClick closes the modal only when the click landed on the backdrop
// itself, never on the modal content.
func (c *Controller) HandleClick(target ClickTarget) bool {
	if target != TargetBackdrop || !c.state.Open {
		return false
	}
	c.Close()
	return true
}

func (c *Controller) resetContext() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(c.parent)
}
