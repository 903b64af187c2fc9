package mutation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/kingrea/socialhub/internal/counter"
	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/feedapi"
	"github.com/kingrea/socialhub/internal/modal"
)

// LoadFeed re-fetches the post list. A request made while a load is in
// flight is deferred: one more load is issued once the current one settles,
// since its list may predate the change that asked for the reload.
func (e *Engine) LoadFeed() tea.Cmd {
	if !e.begin(Key{Op: OpLoadFeed}) {
		e.loadAgain = true
		return nil
	}
	e.loadSeq++
	api, ctx, seq := e.api, e.ctx, e.loadSeq
	return func() tea.Msg {
		posts, err := api.ListPosts(ctx)
		return feedLoadedMsg{seq: seq, posts: posts, err: err}
	}
}

func (e *Engine) feedLoaded(msg feedLoadedMsg) tea.Cmd {
	key := Key{Op: OpLoadFeed}
	e.finish(key)
	var cmd tea.Cmd
	if msg.err != nil {
		cmd = e.fail(key, msg.err, feedFailure)
	} else {
		e.posts.Replace(e.reconcileFeed(msg.seq, msg.posts))
	}
	if e.loadAgain {
		e.loadAgain = false
		return tea.Batch(cmd, e.LoadFeed())
	}
	return cmd
}

// reconcileFeed merges a loaded list with local delete state. Posts deleted
// after the load was issued are dropped, or kept only while their exit
// transition runs. Posts with a delete in flight stay frozen.
func (e *Engine) reconcileFeed(seq uint64, posts []feed.Post) []feed.Post {
	out := make([]feed.Post, 0, len(posts))
	for _, p := range posts {
		if issued, ok := e.deleted[p.ID]; ok {
			if seq <= issued {
				if cur, ok := e.posts.Get(p.ID); ok && cur.Removing {
					out = append(out, cur)
				}
				continue
			}
		}
		if e.Pending(Key{EntityID: p.ID, Op: OpDeletePost}) {
			p.Disabled = true
		}
		out = append(out, p)
	}
	for id, issued := range e.deleted {
		if seq > issued {
			delete(e.deleted, id)
		}
	}
	return out
}

// ToggleLike flips the viewer's like. The mirror changes only when the
// server answers; a second toggle while one is outstanding is ignored.
func (e *Engine) ToggleLike(postID string) tea.Cmd {
	if e.frozen(postID) {
		return nil
	}
	if !e.begin(Key{EntityID: postID, Op: OpToggleLike}) {
		return nil
	}
	api, ctx := e.api, e.ctx
	return func() tea.Msg {
		state, err := api.ToggleLike(ctx, postID)
		return likeSettledMsg{postID: postID, state: state, err: err}
	}
}

func (e *Engine) likeSettled(msg likeSettledMsg) tea.Cmd {
	key := Key{EntityID: msg.postID, Op: OpToggleLike}
	e.finish(key)
	if msg.err != nil {
		return e.fail(key, msg.err, likeFailure)
	}
	post, ok := e.posts.Get(msg.postID)
	if !ok {
		e.logger.WithField("post_id", msg.postID).Debug("like settled for a post no longer shown")
		return nil
	}
	ck := counter.LikeKey(msg.postID)
	from := e.counters.Display(ck, post.LikeCount)
	e.posts.Apply(feed.LikeSettled{PostID: msg.postID, Liked: msg.state.Liked, Count: msg.state.Count})
	return e.counters.Animate(ck, from, msg.state.Count)
}

// CreatePost publishes a post. The submit control stays busy until the
// request settles.
func (e *Engine) CreatePost(post feedapi.NewPost) tea.Cmd {
	if strings.TrimSpace(post.Body) == "" && post.Media == nil {
		e.invalid("body", "post is empty")
		return nil
	}
	if post.Privacy == "" {
		post.Privacy = feed.PrivacyPublic
	}
	if !e.begin(Key{Op: OpCreatePost}) {
		return nil
	}
	e.busy[ControlCreatePost] = true
	api, ctx := e.api, e.ctx
	return func() tea.Msg {
		id, err := api.CreatePost(ctx, post)
		return postCreatedMsg{id: id, err: err}
	}
}

func (e *Engine) postCreated(msg postCreatedMsg) tea.Cmd {
	key := Key{Op: OpCreatePost}
	e.finish(key)
	e.release(ControlCreatePost, msg.err)
	if msg.err != nil {
		return e.fail(key, msg.err, createFailure)
	}
	e.logger.WithField("post_id", msg.id).Info("post published")
	return tea.Batch(e.toasts.Success("Post published successfully!"), e.reload())
}

// BeginUpdatePost reads the post and opens the edit surface pre-filled
// with the snapshot.
func (e *Engine) BeginUpdatePost(postID string) tea.Cmd {
	if e.frozen(postID) || e.modals.Current().Open {
		return nil
	}
	if !e.begin(Key{EntityID: postID, Op: OpLoadPost}) {
		return nil
	}
	api, ctx := e.api, e.ctx
	return func() tea.Msg {
		snapshot, err := api.GetPost(ctx, postID)
		return postLoadedMsg{postID: postID, snapshot: snapshot, err: err}
	}
}

func (e *Engine) postLoaded(msg postLoadedMsg) tea.Cmd {
	key := Key{EntityID: msg.postID, Op: OpLoadPost}
	e.finish(key)
	if msg.err != nil {
		return e.fail(key, msg.err, loadPostFailure)
	}
	if e.frozen(msg.postID) || !e.modals.Open(modal.KindUpdatePost, msg.postID) {
		e.logger.WithField("post_id", msg.postID).Debug("edit snapshot arrived after the view moved on")
		return nil
	}
	e.edit = EditForm{
		PostID:  msg.postID,
		Body:    msg.snapshot.Body,
		Privacy: msg.snapshot.Privacy,
		Ready:   true,
		gen:     e.modals.Current().Generation,
	}
	return nil
}

// UpdatePost saves the edit surface. It requires the snapshot loaded by
// BeginUpdatePost for the same post.
func (e *Engine) UpdatePost(postID, body string, privacy feed.Privacy) tea.Cmd {
	if !e.edit.Ready || e.edit.PostID != postID || !e.modals.IsCurrent(modal.KindUpdatePost, postID, e.edit.gen) {
		e.invalid("post", "no edit snapshot for "+postID)
		return nil
	}
	if privacy == "" {
		privacy = e.edit.Privacy
	}
	if !e.begin(Key{EntityID: postID, Op: OpUpdatePost}) {
		return nil
	}
	e.edit.Body = body
	e.edit.Privacy = privacy
	e.busy[ControlUpdatePost] = true
	api, ctx, gen := e.api, e.ctx, e.edit.gen
	return func() tea.Msg {
		err := api.UpdatePost(ctx, postID, body, privacy)
		return postUpdatedMsg{postID: postID, gen: gen, body: body, privacy: privacy, err: err}
	}
}

func (e *Engine) postUpdated(msg postUpdatedMsg) tea.Cmd {
	key := Key{EntityID: msg.postID, Op: OpUpdatePost}
	e.finish(key)
	e.release(ControlUpdatePost, msg.err)
	if msg.err != nil {
		return e.fail(key, msg.err, updateFailure)
	}
	e.posts.Apply(feed.Edited{PostID: msg.postID, Body: msg.body, Privacy: msg.privacy})
	if e.modals.IsCurrent(modal.KindUpdatePost, msg.postID, msg.gen) {
		e.modals.Close()
	}
	return e.toasts.Success("Post updated successfully!")
}

// DeletePost asks confirm, then dims and freezes the post while the delete
// is outstanding. Success runs the exit transition before removal; failure
// restores the post.
func (e *Engine) DeletePost(postID string, confirm Confirmer) tea.Cmd {
	if e.frozen(postID) {
		return nil
	}
	if confirm == nil || !confirm(postID) {
		return nil
	}
	if !e.begin(Key{EntityID: postID, Op: OpDeletePost}) {
		return nil
	}
	e.posts.Apply(feed.Disabled{PostID: postID, On: true})
	state := e.modals.Current()
	fromModal := state.Open && state.Kind == modal.KindUpdatePost && state.TargetID == postID
	api, ctx := e.api, e.ctx
	return func() tea.Msg {
		err := api.DeletePost(ctx, postID)
		return postDeletedMsg{postID: postID, gen: state.Generation, fromModal: fromModal, err: err}
	}
}

func (e *Engine) postDeleted(msg postDeletedMsg) tea.Cmd {
	key := Key{EntityID: msg.postID, Op: OpDeletePost}
	e.finish(key)
	if msg.err != nil {
		e.posts.Apply(feed.Disabled{PostID: msg.postID, On: false})
		return e.fail(key, msg.err, deleteFailure)
	}
	if msg.fromModal && e.modals.IsCurrent(modal.KindUpdatePost, msg.postID, msg.gen) {
		e.modals.Close()
	}
	if e.modals.IsOpen(modal.KindComments) && e.modals.Current().TargetID == msg.postID {
		e.modals.Close()
	}
	e.counters.Cancel(counter.LikeKey(msg.postID))
	e.counters.Cancel(counter.CommentKey(msg.postID))
	e.deleted[msg.postID] = e.loadSeq
	e.posts.Apply(feed.ExitStarted{PostID: msg.postID})
	postID := msg.postID
	return tea.Batch(
		e.toasts.Success("Post deleted successfully!"),
		tea.Tick(e.postExit, func(_ time.Time) tea.Msg {
			return postExitDoneMsg{postID: postID}
		}),
	)
}

// OpenComments opens the comments modal for postID and loads its thread.
// The load is bound to the modal: closing or retargeting cancels it.
func (e *Engine) OpenComments(postID string) tea.Cmd {
	if e.frozen(postID) {
		return nil
	}
	previous := e.modals.Current()
	if !e.modals.Open(modal.KindComments, postID) {
		return nil
	}
	state := e.modals.Current()
	if previous.Open && previous.Generation == state.Generation {
		return nil
	}
	if previous.Open && previous.TargetID != postID {
		e.commentInput = ""
	}
	e.thread.Begin(postID, state.Generation)
	api, ctx, gen := e.api, e.modals.Context(), state.Generation
	return func() tea.Msg {
		comments, err := api.ListComments(ctx, postID)
		return commentsLoadedMsg{postID: postID, gen: gen, comments: comments, err: err}
	}
}

func (e *Engine) commentsLoaded(msg commentsLoadedMsg) tea.Cmd {
	fields := logrus.Fields{"post_id": msg.postID, "generation": msg.gen}
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			e.logger.WithFields(fields).Debug("comment load cancelled")
			return nil
		}
		if e.thread.Failed(msg.postID, msg.gen, feedapi.IsTransport(msg.err)) {
			e.logger.WithFields(fields).WithError(msg.err).Warn("comment load failed")
		}
		return nil
	}
	if !e.thread.Loaded(msg.postID, msg.gen, msg.comments) {
		e.logger.WithFields(fields).Debug("discarding comments for a closed thread")
	}
	return nil
}

// PostComment submits a comment from the open comments modal. The input is
// cleared at once and restored verbatim if the request fails.
func (e *Engine) PostComment(postID, body string) tea.Cmd {
	state := e.modals.Current()
	if !e.modals.IsCurrent(modal.KindComments, postID, state.Generation) {
		return nil
	}
	text := strings.TrimSpace(body)
	if text == "" {
		e.invalid("comment", "comment is empty")
		return nil
	}
	if !e.begin(Key{EntityID: postID, Op: OpPostComment}) {
		return nil
	}
	e.commentInput = ""
	e.busy[ControlComment] = true
	api, ctx, gen := e.api, e.ctx, state.Generation
	return func() tea.Msg {
		comment, err := api.CreateComment(ctx, postID, text)
		return commentCreatedMsg{postID: postID, gen: gen, typed: body, comment: comment, err: err}
	}
}

// commentCreated settles a comment. On failure the typed text comes back
// only while the same modal instance is open with an empty input; a modal
// closed or reopened meanwhile does not get it.
func (e *Engine) commentCreated(msg commentCreatedMsg) tea.Cmd {
	key := Key{EntityID: msg.postID, Op: OpPostComment}
	e.finish(key)
	e.release(ControlComment, msg.err)
	if msg.err != nil {
		if e.modals.IsCurrent(modal.KindComments, msg.postID, msg.gen) && e.commentInput == "" {
			e.commentInput = msg.typed
		}
		return e.fail(key, msg.err, commentFailure)
	}
	if !e.thread.Insert(msg.postID, msg.gen, msg.comment) {
		e.logger.WithField("post_id", msg.postID).Debug("comment created for a closed thread")
	}
	cmds := []tea.Cmd{e.toasts.Success("Comment added successfully!")}
	if post, ok := e.posts.Get(msg.postID); ok {
		ck := counter.CommentKey(msg.postID)
		from := e.counters.Display(ck, post.CommentCount)
		e.posts.Apply(feed.CommentAdded{PostID: msg.postID})
		cmds = append(cmds, e.counters.Animate(ck, from, post.CommentCount+1))
	}
	return tea.Batch(cmds...)
}

// UpdateBio saves the profile bio.
func (e *Engine) UpdateBio(text string) tea.Cmd {
	if utf8.RuneCountInString(text) > MaxBioLength {
		err := e.invalid("bio", "Bio cannot exceed 500 characters.")
		return e.toasts.Error(err.Message)
	}
	if !e.begin(Key{Op: OpUpdateBio}) {
		return nil
	}
	e.busy[ControlBio] = true
	api, ctx := e.api, e.ctx
	return func() tea.Msg {
		err := api.UpdateBio(ctx, text)
		return bioUpdatedMsg{bio: text, err: err}
	}
}

func (e *Engine) bioUpdated(msg bioUpdatedMsg) tea.Cmd {
	key := Key{Op: OpUpdateBio}
	e.finish(key)
	e.release(ControlBio, msg.err)
	if msg.err != nil {
		return e.fail(key, msg.err, bioFailure)
	}
	e.bio = msg.bio
	return e.toasts.Success("Bio updated successfully!")
}

// OpenChangePassword opens the change-password modal with a clean form.
func (e *Engine) OpenChangePassword() bool {
	if !e.modals.Open(modal.KindChangePassword, "") {
		return false
	}
	e.passwordErr = ""
	return true
}

// ChangePassword validates locally and then submits. Violations become the
// modal's inline error without a request.
func (e *Engine) ChangePassword(current, next, confirm string) tea.Cmd {
	state := e.modals.Current()
	if !e.modals.IsOpen(modal.KindChangePassword) {
		return nil
	}
	e.passwordErr = ""
	if next != confirm {
		e.passwordErr = e.invalid("password", "New password and confirm password do not match.").Message
		return nil
	}
	if utf8.RuneCountInString(next) < MinPasswordLen {
		e.passwordErr = e.invalid("password", "Password must be at least 8 characters long.").Message
		return nil
	}
	if !e.begin(Key{Op: OpChangePassword}) {
		return nil
	}
	e.busy[ControlPassword] = true
	api, ctx, gen := e.api, e.ctx, state.Generation
	return func() tea.Msg {
		err := api.ChangePassword(ctx, current, next)
		return passwordChangedMsg{gen: gen, err: err}
	}
}

func (e *Engine) passwordChanged(msg passwordChangedMsg) tea.Cmd {
	key := Key{Op: OpChangePassword}
	e.finish(key)
	e.release(ControlPassword, msg.err)
	current := e.modals.IsCurrent(modal.KindChangePassword, "", msg.gen)
	if msg.err != nil {
		if !current {
			return e.fail(key, msg.err, passwordFailure)
		}
		e.logger.WithError(msg.err).Warn("password change rejected")
		e.passwordErr = passwordFailure.message(msg.err)
		return nil
	}
	if current {
		e.modals.Close()
	}
	return e.toasts.Success("Password changed successfully!")
}

// OpenShare opens the share sheet for postID.
func (e *Engine) OpenShare(postID string) bool {
	post, ok := e.posts.Get(postID)
	if !ok || post.Disabled || post.Removing {
		return false
	}
	if !e.modals.Open(modal.KindShare, "") {
		return false
	}
	e.share = NewShareSheet(e.shareURL, post)
	return true
}

// CloseModal closes whichever modal is open.
func (e *Engine) CloseModal() {
	e.modals.Close()
}
