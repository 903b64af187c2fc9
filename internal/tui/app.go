// internal/tui/app.go
//
// This is the terminal client for SocialHub.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the App, which owns the mutation engine
// 2. Update: applies key presses and settled responses
// 3. View: renders the feed, the open modal and the toasts
//
// Network calls run inside tea.Cmd goroutines and come back as messages, so
// every state change still happens here on the update loop.

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/socialhub/internal/config"
	"github.com/kingrea/socialhub/internal/counter"
	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/feedapi"
	"github.com/kingrea/socialhub/internal/logbook"
	"github.com/kingrea/socialhub/internal/modal"
	"github.com/kingrea/socialhub/internal/mutation"
	"github.com/kingrea/socialhub/internal/notify"
)

// panel is an inline surface on the feed screen. Panels are not modals: they
// only open while no modal is open.
type panel int

const (
	panelNone panel = iota
	panelCompose
	panelBio
	panelConfirmDelete
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithAPI replaces the HTTP client built from config.
func WithAPI(api mutation.API) AppOption {
	return func(a *App) {
		if api != nil {
			a.api = api
		}
	}
}

// WithLogbook replaces the journal opened from config.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		if lb != nil {
			a.logbook = lb
		}
	}
}

// WithContext sets the context every request derives from.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// App is the main application model.
type App struct {
	config  *config.Config
	ctx     context.Context
	api     mutation.API
	engine  *mutation.Engine
	logbook *logbook.Logbook

	keys    keyMap
	help    help.Model
	feed    list.Model
	spinner spinner.Model

	panel          panel
	confirmID      string
	composer       textarea.Model
	composePrivacy feed.Privacy
	bioEditor      textarea.Model
	// submitted records Completed(control) at submit time for panels that
	// close only once their mutation succeeds.
	submitted map[mutation.Control]uint64

	editor        textarea.Model
	editPrivacy   feed.Privacy
	editLoadedFor string
	comment       textarea.Model
	passwords     []textinput.Model
	passwordFocus int

	// modalBox is where the open modal was last drawn, for backdrop clicks.
	modalBox rect

	width  int
	height int
}

type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// NewApp wires the client, the engine and the widgets from cfg.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	app := &App{
		config:         cfg,
		ctx:            context.Background(),
		keys:           defaultKeyMap(),
		help:           help.New(),
		composePrivacy: feed.PrivacyPublic,
		editPrivacy:    feed.PrivacyPublic,
		submitted:      make(map[mutation.Control]uint64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.logbook == nil {
		lb, err := logbook.New(cfg.LogPath(), cfg.LogLevel())
		if err != nil {
			lb = logbook.Discard()
		}
		app.logbook = lb
	}
	if app.api == nil {
		client, err := feedapi.New(cfg.File.API.BaseURL,
			feedapi.WithCSRFToken(cfg.File.Auth.CSRFToken),
			feedapi.WithSession(cfg.File.Auth.Session),
			feedapi.WithRetries(cfg.File.API.Retries),
			feedapi.WithTimeout(cfg.File.API.Timeout),
			feedapi.WithProfilePath(cfg.File.API.ProfilePath),
			feedapi.WithLogger(app.logbook.Logger),
		)
		if err != nil {
			return nil, err
		}
		app.api = client
	}
	ui := cfg.File.UI
	app.engine = mutation.New(app.api, nil,
		mutation.WithContext(app.ctx),
		mutation.WithLogger(app.logbook.Logger),
		mutation.WithNotifications(notify.NewQueue(notify.WithTimings(notify.Timings{
			Enter:   ui.ToastEnter,
			Display: ui.ToastDisplay,
			Exit:    ui.ToastExit,
		}))),
		mutation.WithAnimator(counter.New(ui.CounterDuration, ui.CounterTick)),
		mutation.WithPostExit(ui.PostExit),
		mutation.WithShareBaseURL(cfg.File.API.BaseURL),
	)

	app.feed = list.New(nil, postDelegate{app: app}, 0, 0)
	app.feed.Title = "Feed"
	app.feed.SetShowStatusBar(false)
	app.feed.SetFilteringEnabled(false)
	app.feed.SetShowHelp(false)

	app.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))

	app.composer = newTextArea("What's on your mind?", 0)
	app.bioEditor = newTextArea("Tell people about yourself", mutation.MaxBioLength)
	app.editor = newTextArea("Post body", 0)
	app.comment = newTextArea("Write a comment...", 0)
	app.comment.SetHeight(3)
	app.passwords = []textinput.Model{
		newPasswordInput("Current password"),
		newPasswordInput("New password"),
		newPasswordInput("Confirm new password"),
	}

	app.logbook.WithField("base_url", cfg.File.API.BaseURL).Info("session opened")
	return app, nil
}

func newTextArea(placeholder string, limit int) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = limit
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(5)
	return ta
}

func newPasswordInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 128
	ti.Width = 40
	return ti
}

// Engine exposes the mutation engine, mainly for tests.
func (a *App) Engine() *mutation.Engine { return a.engine }

// Close releases the journal.
func (a *App) Close() error {
	a.logbook.Info("session closed")
	return a.logbook.Close()
}

// Init loads the feed and starts the busy spinner.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.engine.LoadFeed(), a.spinner.Tick)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			target := modal.TargetContent
			if !a.modalBox.contains(msg.X, msg.Y) {
				target = modal.TargetBackdrop
			}
			a.engine.Modals().HandleClick(target)
			a.syncFromEngine()
		}
		return a, nil

	case tea.KeyMsg:
		cmd := a.handleKey(msg)
		a.syncFromEngine()
		return a, cmd
	}

	if cmd, ok := a.engine.Update(msg); ok {
		cmds = append(cmds, cmd)
	}
	a.syncFromEngine()
	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if a.engine.Modals().Current().Open {
		return a.handleModalKey(msg)
	}
	if a.panel != panelNone {
		return a.handlePanelKey(msg)
	}
	return a.handleFeedKey(msg)
}

func (a *App) selectedPostID() string {
	item, ok := a.feed.SelectedItem().(postItem)
	if !ok {
		return ""
	}
	return item.post.ID
}

func (a *App) handleFeedKey(msg tea.KeyMsg) tea.Cmd {
	id := a.selectedPostID()
	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Like):
		return a.engine.ToggleLike(id)
	case key.Matches(msg, a.keys.Comments):
		cmd := a.engine.OpenComments(id)
		if a.engine.Modals().IsOpen(modal.KindComments) {
			return tea.Batch(cmd, a.comment.Focus())
		}
		return cmd
	case key.Matches(msg, a.keys.Edit):
		return a.engine.BeginUpdatePost(id)
	case key.Matches(msg, a.keys.Delete):
		if post, ok := a.engine.Posts().Get(id); ok && !post.Disabled && !post.Removing {
			a.panel = panelConfirmDelete
			a.confirmID = id
		}
		return nil
	case key.Matches(msg, a.keys.Share):
		a.engine.OpenShare(id)
		return nil
	case key.Matches(msg, a.keys.Compose):
		a.panel = panelCompose
		return a.composer.Focus()
	case key.Matches(msg, a.keys.Bio):
		a.panel = panelBio
		a.bioEditor.SetValue(a.engine.RawBio())
		return a.bioEditor.Focus()
	case key.Matches(msg, a.keys.Password):
		if a.engine.OpenChangePassword() {
			a.passwordFocus = 0
			return a.focusPassword()
		}
		return nil
	case key.Matches(msg, a.keys.Reload):
		return a.engine.LoadFeed()
	}
	var cmd tea.Cmd
	a.feed, cmd = a.feed.Update(msg)
	return cmd
}

func (a *App) handlePanelKey(msg tea.KeyMsg) tea.Cmd {
	switch a.panel {
	case panelConfirmDelete:
		id := a.confirmID
		switch {
		case key.Matches(msg, a.keys.Confirm):
			a.closePanel()
			return a.engine.DeletePost(id, mutation.Confirmed)
		case key.Matches(msg, a.keys.Decline):
			a.closePanel()
		}
		return nil
	case panelCompose:
		switch {
		case key.Matches(msg, a.keys.Close):
			a.closePanel()
			return nil
		case a.engine.Button(mutation.ControlCreatePost).Disabled:
			return nil
		case key.Matches(msg, a.keys.Privacy):
			a.composePrivacy = a.composePrivacy.Toggle()
			return nil
		case key.Matches(msg, a.keys.Submit):
			cmd := a.engine.CreatePost(feedapi.NewPost{
				Body:    a.composer.Value(),
				Privacy: a.composePrivacy,
			})
			if cmd != nil {
				a.submitted[mutation.ControlCreatePost] = a.engine.Completed(mutation.ControlCreatePost)
			}
			return cmd
		}
		var cmd tea.Cmd
		a.composer, cmd = a.composer.Update(msg)
		return cmd
	case panelBio:
		switch {
		case key.Matches(msg, a.keys.Close):
			a.closePanel()
			return nil
		case a.engine.Button(mutation.ControlBio).Disabled:
			return nil
		case key.Matches(msg, a.keys.Submit):
			a.submitted[mutation.ControlBio] = a.engine.Completed(mutation.ControlBio)
			return a.engine.UpdateBio(a.bioEditor.Value())
		}
		var cmd tea.Cmd
		a.bioEditor, cmd = a.bioEditor.Update(msg)
		return cmd
	}
	return nil
}

func (a *App) closePanel() {
	a.panel = panelNone
	a.confirmID = ""
	a.composer.Blur()
	a.bioEditor.Blur()
}

func (a *App) handleModalKey(msg tea.KeyMsg) tea.Cmd {
	modals := a.engine.Modals()
	if modals.HandleKey(msg.String()) {
		a.confirmID = ""
		return nil
	}
	state := modals.Current()
	switch state.Kind {
	case modal.KindComments:
		if key.Matches(msg, a.keys.Submit) {
			a.engine.SetCommentInput(a.comment.Value())
			return a.engine.PostComment(state.TargetID, a.comment.Value())
		}
		var cmd tea.Cmd
		a.comment, cmd = a.comment.Update(msg)
		a.engine.SetCommentInput(a.comment.Value())
		return cmd

	case modal.KindUpdatePost:
		if a.confirmID != "" {
			id := a.confirmID
			switch {
			case key.Matches(msg, a.keys.Confirm):
				a.confirmID = ""
				return a.engine.DeletePost(id, mutation.Confirmed)
			case key.Matches(msg, a.keys.Decline):
				a.confirmID = ""
			}
			return nil
		}
		form := a.engine.EditForm()
		switch {
		case !form.Ready:
			return nil
		case key.Matches(msg, a.keys.Submit):
			return a.engine.UpdatePost(form.PostID, a.editor.Value(), a.editPrivacy)
		case key.Matches(msg, a.keys.Privacy):
			a.editPrivacy = a.editPrivacy.Toggle()
			return nil
		case msg.String() == "ctrl+d":
			a.confirmID = form.PostID
			return nil
		}
		var cmd tea.Cmd
		a.editor, cmd = a.editor.Update(msg)
		return cmd

	case modal.KindChangePassword:
		switch {
		case key.Matches(msg, a.keys.Next):
			step := 1
			if msg.String() == "shift+tab" {
				step = len(a.passwords) - 1
			}
			a.passwordFocus = (a.passwordFocus + step) % len(a.passwords)
			return a.focusPassword()
		case key.Matches(msg, a.keys.Submit), msg.String() == "enter":
			return a.engine.ChangePassword(a.passwords[0].Value(), a.passwords[1].Value(), a.passwords[2].Value())
		}
		var cmd tea.Cmd
		a.passwords[a.passwordFocus], cmd = a.passwords[a.passwordFocus].Update(msg)
		return cmd
	}
	return nil
}

func (a *App) focusPassword() tea.Cmd {
	var cmd tea.Cmd
	for i := range a.passwords {
		if i == a.passwordFocus {
			cmd = a.passwords[i].Focus()
			continue
		}
		a.passwords[i].Blur()
	}
	return cmd
}

// syncFromEngine copies engine state into the widgets after every update.
func (a *App) syncFromEngine() {
	state := a.engine.Modals().Current()

	if a.comment.Value() != a.engine.CommentInput() {
		a.comment.SetValue(a.engine.CommentInput())
	}
	if !state.Open || state.Kind != modal.KindComments {
		a.comment.Blur()
	}

	form := a.engine.EditForm()
	switch {
	case state.Open && state.Kind == modal.KindUpdatePost && form.Ready:
		if a.editLoadedFor != form.PostID {
			a.editLoadedFor = form.PostID
			a.editor.SetValue(form.Body)
			a.editPrivacy = form.Privacy
			a.editor.Focus()
		}
	default:
		if a.editLoadedFor != "" {
			a.editLoadedFor = ""
			a.editor.Reset()
			a.editor.Blur()
		}
		if !state.Open && a.panel != panelConfirmDelete {
			a.confirmID = ""
		}
	}

	if a.succeeded(mutation.ControlCreatePost) && a.panel == panelCompose {
		a.composer.Reset()
		a.composePrivacy = feed.PrivacyPublic
		a.closePanel()
	}
	if a.succeeded(mutation.ControlBio) && a.panel == panelBio {
		a.closePanel()
	}

	if !a.engine.Modals().IsOpen(modal.KindChangePassword) {
		for i := range a.passwords {
			a.passwords[i].Reset()
			a.passwords[i].Blur()
		}
		a.passwordFocus = 0
	}

	a.refreshFeed()
}

// succeeded reports, once, that the submission recorded for control has
// completed successfully.
func (a *App) succeeded(control mutation.Control) bool {
	before, ok := a.submitted[control]
	if !ok || a.engine.Button(control).Disabled {
		return false
	}
	delete(a.submitted, control)
	return a.engine.Completed(control) > before
}

func (a *App) refreshFeed() {
	posts := a.engine.Posts().Posts()
	items := make([]list.Item, len(posts))
	for i, post := range posts {
		items[i] = postItem{post: post}
	}
	idx := a.feed.Index()
	a.feed.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		a.feed.Select(idx)
	}
}

func (a *App) resize() {
	feedWidth, _ := a.columns()
	a.feed.SetSize(max(20, feedWidth-4), max(6, a.height-14))
	boxWidth := modalWidth(a.width) - 6
	a.editor.SetWidth(max(20, boxWidth))
	a.comment.SetWidth(max(20, boxWidth))
	a.composer.SetWidth(max(20, feedWidth-6))
	a.bioEditor.SetWidth(max(20, feedWidth-6))
	a.help.Width = a.width
}

func (a *App) columns() (int, int) {
	width := a.width
	if width <= 0 {
		width = 100
	}
	side := max(28, width/3)
	body := width - side - 4
	if body < 40 {
		return width - 2, 0
	}
	return body, side
}

func busyLabel(b mutation.Button, spin string) string {
	if b.Disabled {
		return strings.TrimSpace(spin + " " + b.Label)
	}
	return b.Label
}
