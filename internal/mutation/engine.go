// Package mutation coordinates every mutating action of the feed client:
// pending-state tracking, request dispatch, reconciliation of settled
// responses and rollback on failure. All state changes happen inside the
// bubbletea update loop; commands only perform I/O and return settle
// messages.
package mutation

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/kingrea/socialhub/internal/counter"
	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/feedapi"
	"github.com/kingrea/socialhub/internal/modal"
	"github.com/kingrea/socialhub/internal/notify"
	"github.com/kingrea/socialhub/internal/thread"
)

const (
	DefaultPostExit = 300 * time.Millisecond
	MaxBioLength    = 500
	MinPasswordLen  = 8

	noBioText = "No bio available"
)

// API is the backend the engine mutates. *feedapi.Client implements it.
type API interface {
	ListPosts(ctx context.Context) ([]feed.Post, error)
	GetPost(ctx context.Context, id string) (feedapi.PostSnapshot, error)
	CreatePost(ctx context.Context, post feedapi.NewPost) (string, error)
	UpdatePost(ctx context.Context, id, body string, privacy feed.Privacy) error
	DeletePost(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id string) (feedapi.LikeState, error)
	ListComments(ctx context.Context, postID string) ([]thread.Comment, error)
	CreateComment(ctx context.Context, postID, body string) (thread.Comment, error)
	ChangePassword(ctx context.Context, current, next string) error
	UpdateBio(ctx context.Context, bio string) error
}

// Control is an interactive submit control that shows a busy label while
// its mutation is outstanding.
type Control int

const (
	ControlCreatePost Control = iota
	ControlUpdatePost
	ControlComment
	ControlBio
	ControlPassword
)

var (
	idleLabels = map[Control]string{
		ControlCreatePost: "Post",
		ControlUpdatePost: "Update Post",
		ControlComment:    "Send",
		ControlBio:        "Save",
		ControlPassword:   "Change Password",
	}
	busyLabels = map[Control]string{
		ControlCreatePost: "Publishing...",
		ControlUpdatePost: "Saving...",
		ControlComment:    "Sending...",
		ControlBio:        "Saving...",
		ControlPassword:   "Changing password...",
	}
)

// Button is the rendered state of a Control.
type Button struct {
	Label    string
	Disabled bool
}

// EditForm is the pre-filled update surface. Ready is set once the
// snapshot read has settled.
type EditForm struct {
	PostID  string
	Body    string
	Privacy feed.Privacy
	Ready   bool
	gen     uint64
}

// Confirmer makes the blocking yes/no decision before a delete.
type Confirmer func(postID string) bool

// Confirmed approves every delete. Use it once the caller has collected
// the decision itself.
func Confirmed(string) bool { return true }

// ReloadFunc refreshes the feed after a post is published.
type ReloadFunc func() tea.Cmd

// Engine is the application-level context of the client: it owns the feed
// mirror, the modal state, the comment thread and the pending table.
type Engine struct {
	api      API
	ctx      context.Context
	logger   logrus.FieldLogger
	posts    *feed.Store
	modals   *modal.Controller
	thread   *thread.Reconciler
	toasts   *notify.Queue
	counters *counter.Animator
	reload   ReloadFunc
	postExit time.Duration
	shareURL string

	pending map[Key]struct{}
	busy    map[Control]bool
	done    map[Control]uint64

	// loadSeq numbers feed loads as they are issued. deleted maps a deleted
	// post to the last load issued before its delete settled; results of
	// that load or older ones must not bring it back.
	loadSeq   uint64
	loadAgain bool
	deleted   map[string]uint64

	edit         EditForm
	commentInput string
	passwordErr  string
	bio          string
	share        ShareSheet
}

// Option customizes an Engine.
type Option func(*Engine)

// WithContext sets the parent context of every request.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		if ctx != nil {
			e.ctx = ctx
		}
	}
}

// WithLogger routes engine logs. nil is ignored.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNotifications replaces the default toast queue.
func WithNotifications(q *notify.Queue) Option {
	return func(e *Engine) {
		if q != nil {
			e.toasts = q
		}
	}
}

// WithAnimator replaces the default counter animator.
func WithAnimator(a *counter.Animator) Option {
	return func(e *Engine) {
		if a != nil {
			e.counters = a
		}
	}
}

// WithReload replaces the default feed re-fetch run after a post is created.
func WithReload(fn ReloadFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.reload = fn
		}
	}
}

// WithPostExit sets how long a deleted post runs its exit transition.
func WithPostExit(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.postExit = d
		}
	}
}

// WithShareBaseURL sets the origin used to build share links.
func WithShareBaseURL(base string) Option {
	return func(e *Engine) { e.shareURL = base }
}

// WithBio seeds the profile bio.
func WithBio(bio string) Option {
	return func(e *Engine) { e.bio = bio }
}

// New creates an engine holding posts as the initial feed mirror.
func New(api API, posts []feed.Post, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Engine{
		api:      api,
		ctx:      context.Background(),
		logger:   discard,
		posts:    feed.NewStore(posts),
		thread:   thread.New(),
		toasts:   notify.NewQueue(),
		counters: counter.New(counter.DefaultDuration, counter.DefaultTick),
		postExit: DefaultPostExit,
		pending:  make(map[Key]struct{}),
		busy:     make(map[Control]bool),
		done:     make(map[Control]uint64),
		deleted:  make(map[string]uint64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.reload == nil {
		e.reload = e.LoadFeed
	}
	e.modals = modal.NewController(e.ctx)
	e.modals.OnClose(e.onModalClose)
	return e
}

func (e *Engine) onModalClose(closed modal.State) {
	switch closed.Kind {
	case modal.KindComments:
		e.thread.Clear()
		e.commentInput = ""
	case modal.KindUpdatePost:
		e.edit = EditForm{}
	case modal.KindChangePassword:
		e.passwordErr = ""
	case modal.KindShare:
		e.share = ShareSheet{}
	}
	e.logger.WithField("modal", closed.Kind.String()).Debug("modal closed")
}

// Posts is the feed mirror.
func (e *Engine) Posts() *feed.Store { return e.posts }

// Modals is the modal controller.
func (e *Engine) Modals() *modal.Controller { return e.modals }

// Thread is the comment thread of the open comments modal.
func (e *Engine) Thread() *thread.Reconciler { return e.thread }

// Notifications is the toast queue.
func (e *Engine) Notifications() *notify.Queue { return e.toasts }

// Counters is the counter animator.
func (e *Engine) Counters() *counter.Animator { return e.counters }

// Pending reports whether the mutation key is in flight.
func (e *Engine) Pending(key Key) bool {
	_, ok := e.pending[key]
	return ok
}

// PendingCount returns the number of in-flight mutations.
func (e *Engine) PendingCount() int { return len(e.pending) }

// Button returns the rendered state of control.
func (e *Engine) Button(control Control) Button {
	if e.busy[control] {
		return Button{Label: busyLabels[control], Disabled: true}
	}
	return Button{Label: idleLabels[control]}
}

// Completed counts the successful submissions of control. Callers compare
// it before and after a submit to learn the outcome.
func (e *Engine) Completed(control Control) uint64 { return e.done[control] }

// release restores control after its mutation settled.
func (e *Engine) release(control Control, err error) {
	e.busy[control] = false
	if err == nil {
		e.done[control]++
	}
}

// EditForm returns the update surface.
func (e *Engine) EditForm() EditForm { return e.edit }

// CommentInput is the text of the comment box.
func (e *Engine) CommentInput() string { return e.commentInput }

// SetCommentInput mirrors what the user typed into the comment box.
func (e *Engine) SetCommentInput(text string) { e.commentInput = text }

// PasswordError is the inline error of the change-password modal.
func (e *Engine) PasswordError() string { return e.passwordErr }

// Bio returns the display text of the profile bio.
func (e *Engine) Bio() string {
	if e.bio == "" {
		return noBioText
	}
	return e.bio
}

// RawBio returns the bio as stored, empty when none is set.
func (e *Engine) RawBio() string { return e.bio }

// BioButtonLabel is the label of the control that opens the bio editor.
func (e *Engine) BioButtonLabel() string {
	if e.bio == "" {
		return "Add Bio"
	}
	return "Update Bio"
}

// Share returns the open share sheet.
func (e *Engine) Share() ShareSheet { return e.share }

// frozen reports whether the post accepts no interaction.
func (e *Engine) frozen(postID string) bool {
	post, ok := e.posts.Get(postID)
	return !ok || post.Disabled || post.Removing
}

// begin checks and inserts key in one step. It reports false when the
// mutation is already in flight.
func (e *Engine) begin(key Key) bool {
	if _, ok := e.pending[key]; ok {
		e.logger.WithFields(logrus.Fields{
			"mutation":  key.Op.String(),
			"entity_id": key.EntityID,
		}).Debug("mutation already pending")
		return false
	}
	e.pending[key] = struct{}{}
	return true
}

func (e *Engine) finish(key Key) {
	delete(e.pending, key)
}

func (e *Engine) fail(key Key, err error, text failureText) tea.Cmd {
	msg := text.message(err)
	e.logger.WithFields(logrus.Fields{
		"mutation":  key.Op.String(),
		"entity_id": key.EntityID,
	}).WithError(err).Warn("mutation failed")
	return e.toasts.Error(msg)
}

func (e *Engine) invalid(field, message string) *ValidationError {
	err := &ValidationError{Field: field, Message: message}
	e.logger.WithError(err).Debug("rejected locally")
	return err
}

// Update applies settle messages and timer ticks owned by the engine. It
// reports whether msg was consumed.
func (e *Engine) Update(msg tea.Msg) (tea.Cmd, bool) {
	if cmd, ok := e.toasts.Update(msg); ok {
		return cmd, true
	}
	if cmd, ok := e.counters.Update(msg); ok {
		return cmd, true
	}
	switch msg := msg.(type) {
	case likeSettledMsg:
		return e.likeSettled(msg), true
	case feedLoadedMsg:
		return e.feedLoaded(msg), true
	case postCreatedMsg:
		return e.postCreated(msg), true
	case postLoadedMsg:
		return e.postLoaded(msg), true
	case postUpdatedMsg:
		return e.postUpdated(msg), true
	case postDeletedMsg:
		return e.postDeleted(msg), true
	case postExitDoneMsg:
		e.posts.Apply(feed.Removed{PostID: msg.postID})
		return nil, true
	case commentsLoadedMsg:
		return e.commentsLoaded(msg), true
	case commentCreatedMsg:
		return e.commentCreated(msg), true
	case bioUpdatedMsg:
		return e.bioUpdated(msg), true
	case passwordChangedMsg:
		return e.passwordChanged(msg), true
	}
	return nil, false
}
