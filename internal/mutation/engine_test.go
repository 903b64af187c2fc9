package mutation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/socialhub/internal/counter"
	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/feedapi"
	"github.com/kingrea/socialhub/internal/modal"
	"github.com/kingrea/socialhub/internal/thread"
)

type fakeBackend struct {
	mu     sync.Mutex
	calls  map[string]int
	routes map[string]http.HandlerFunc
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}, routes: map[string]http.HandlerFunc{}}
}

func (f *fakeBackend) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

func (f *fakeBackend) reply(method, path string, status int, body string) {
	f.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeBackend) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls[key]++
	h := f.routes[key]
	f.mu.Unlock()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func newTestEngine(t *testing.T, backend *fakeBackend, posts []feed.Post, opts ...Option) *Engine {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	client, err := feedapi.New(srv.URL, feedapi.WithRetries(0), feedapi.WithCSRFToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return New(client, posts, opts...)
}

// settle runs a request command and feeds its result back into the engine.
func settle(t *testing.T, e *Engine, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	next, ok := e.Update(msg)
	if !ok {
		t.Fatalf("engine did not consume %T", msg)
	}
	return next
}

func lastToast(t *testing.T, e *Engine) string {
	t.Helper()
	active := e.Notifications().Active()
	if len(active) == 0 {
		t.Fatalf("expected a notification")
	}
	return active[len(active)-1].Message
}

func TestToggleLikeTwiceRestoresOriginalState(t *testing.T) {
	backend := newFakeBackend()
	var mu sync.Mutex
	liked, count := false, 4
	backend.handle(http.MethodPost, "/api/posts/42/toggle_like/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		liked = !liked
		if liked {
			count++
		} else {
			count--
		}
		if liked {
			_, _ = io.WriteString(w, `{"liked": true, "like_count": `+strconv.Itoa(count)+`}`)
			return
		}
		_, _ = io.WriteString(w, `{"liked": false, "like_count": `+strconv.Itoa(count)+`}`)
	})
	e := newTestEngine(t, backend, []feed.Post{{ID: "42", LikeCount: 4}})

	settle(t, e, e.ToggleLike("42"))
	if p, _ := e.Posts().Get("42"); !p.Liked || p.LikeCount != 5 {
		t.Fatalf("unexpected post after first toggle: %+v", p)
	}
	settle(t, e, e.ToggleLike("42"))
	if p, _ := e.Posts().Get("42"); p.Liked || p.LikeCount != 4 {
		t.Fatalf("expected original state, got %+v", p)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending table not cleared")
	}
}

func TestToggleLikeWhileInFlightIsIgnored(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/api/posts/42/toggle_like/", http.StatusOK, `{"liked": true, "like_count": 5}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "42", LikeCount: 4}})

	first := e.ToggleLike("42")
	if second := e.ToggleLike("42"); second != nil {
		t.Fatalf("second toggle must be a no-op while the first is pending")
	}
	if !e.Pending(Key{EntityID: "42", Op: OpToggleLike}) {
		t.Fatalf("toggle should be pending")
	}
	settle(t, e, first)
	if got := backend.count(http.MethodPost, "/api/posts/42/toggle_like/"); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
	if e.ToggleLike("42") == nil {
		t.Fatalf("guard must clear once the toggle settles")
	}
}

func TestToggleLikeAnimatesCounter(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/api/posts/42/toggle_like/", http.StatusOK, `{"liked": true, "like_count": 5}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "42", LikeCount: 4}})

	tick := settle(t, e, e.ToggleLike("42"))
	key := counter.LikeKey("42")
	if !e.Counters().Running(key) || e.Counters().Display(key, 5) != 4 {
		t.Fatalf("counter should start animating from 4")
	}
	p, _ := e.Posts().Get("42")
	if !p.Liked || p.LikeCount != 5 {
		t.Fatalf("expected liked post with 5 likes, got %+v", p)
	}
	for i := 0; tick != nil && i < 100; i++ {
		tick, _ = e.Update(tick())
	}
	if e.Counters().Running(key) || e.Counters().Display(key, p.LikeCount) != 5 {
		t.Fatalf("counter should settle on 5")
	}
}

func TestToggleLikeFailureLeavesStateUnchanged(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/api/posts/42/toggle_like/", http.StatusInternalServerError, `{"detail": "boom"}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "42", LikeCount: 4}})

	settle(t, e, e.ToggleLike("42"))
	if p, _ := e.Posts().Get("42"); p.Liked || p.LikeCount != 4 {
		t.Fatalf("failure must not change the post: %+v", p)
	}
	if got := lastToast(t, e); got != "Failed to update like status" {
		t.Fatalf("unexpected toast %q", got)
	}
}

func TestLateLikeForRemovedPostIsDropped(t *testing.T) {
	e := New(nil, nil)
	e.pending[Key{EntityID: "gone", Op: OpToggleLike}] = struct{}{}
	cmd, ok := e.Update(likeSettledMsg{postID: "gone", state: feedapi.LikeState{Liked: true, Count: 1}})
	if !ok || cmd != nil {
		t.Fatalf("late like should be consumed without effects")
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending must clear even when the post is gone")
	}
}

func TestCommentsModalEscapeResetsState(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/P/comments/", http.StatusOK, `[{"id": 1, "body": "late"}]`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "P"}})

	load := e.OpenComments("P")
	if load == nil || !e.Modals().IsOpen(modal.KindComments) {
		t.Fatalf("comments modal should open")
	}
	if !e.Modals().HandleKey("esc") {
		t.Fatalf("escape should close the modal")
	}
	state := e.Modals().Current()
	if state.Open || state.Kind != modal.KindNone || state.TargetID != "" {
		t.Fatalf("unexpected modal state %+v", state)
	}
	settle(t, e, load)
	if e.Thread().Status() != thread.StatusIdle || len(e.Thread().Items()) != 0 {
		t.Fatalf("late comments must not repopulate a closed thread")
	}
}

func openEmptyThread(t *testing.T, e *Engine, postID string) {
	t.Helper()
	settle(t, e, e.OpenComments(postID))
	if ph, ok := e.Thread().Placeholder(); !ok || ph.Title != "No comments yet" {
		t.Fatalf("expected empty placeholder, got %+v", ph)
	}
}

func TestWhitespaceCommentIsRejectedLocally(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/P/comments/", http.StatusOK, `[]`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "P"}})
	openEmptyThread(t, e, "P")

	if cmd := e.PostComment("P", "   \n\t"); cmd != nil {
		t.Fatalf("whitespace comment must not produce a request")
	}
	if got := backend.count(http.MethodPost, "/api/posts/P/comments/"); got != 0 {
		t.Fatalf("expected no calls, got %d", got)
	}
}

func TestCommentReplacesEmptyPlaceholder(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/P/comments/", http.StatusOK, `[]`)
	backend.reply(http.MethodPost, "/api/posts/P/comments/", http.StatusCreated,
		`{"id": 9, "body": "hello", "user": {"f_name": "Ada", "l_name": "Byron"}}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "P"}})
	openEmptyThread(t, e, "P")

	e.SetCommentInput("hello")
	cmd := e.PostComment("P", e.CommentInput())
	if e.CommentInput() != "" {
		t.Fatalf("input should clear immediately")
	}
	if b := e.Button(ControlComment); !b.Disabled {
		t.Fatalf("comment control should be busy")
	}
	if e.PostComment("P", "again") != nil {
		t.Fatalf("only one comment may be outstanding per modal")
	}
	settle(t, e, cmd)

	items := e.Thread().Items()
	if len(items) != 1 || items[0].ID != "9" {
		t.Fatalf("expected exactly one comment, got %+v", items)
	}
	if _, ok := e.Thread().Placeholder(); ok {
		t.Fatalf("placeholder must be replaced")
	}
	if p, _ := e.Posts().Get("P"); p.CommentCount != 1 {
		t.Fatalf("expected comment count 1, got %d", p.CommentCount)
	}
	if !e.Counters().Running(counter.CommentKey("P")) {
		t.Fatalf("comment counter should animate")
	}
	if got := lastToast(t, e); got != "Comment added successfully!" {
		t.Fatalf("unexpected toast %q", got)
	}
	if b := e.Button(ControlComment); b.Disabled || b.Label != "Send" {
		t.Fatalf("comment control not restored: %+v", b)
	}
}

func TestCommentFailureRestoresTypedText(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/P/comments/", http.StatusOK, `[]`)
	backend.reply(http.MethodPost, "/api/posts/P/comments/", http.StatusBadRequest, `{"detail": "nope"}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "P"}})
	openEmptyThread(t, e, "P")

	typed := "  hello there \n"
	settle(t, e, e.PostComment("P", typed))
	if e.CommentInput() != typed {
		t.Fatalf("expected typed text restored verbatim, got %q", e.CommentInput())
	}
	if got := lastToast(t, e); got != "nope" {
		t.Fatalf("unexpected toast %q", got)
	}
	if len(e.Thread().Items()) != 0 {
		t.Fatalf("failed comment must not be inserted")
	}
}

func TestChangePasswordValidatesLocally(t *testing.T) {
	backend := newFakeBackend()
	e := newTestEngine(t, backend, nil)
	if !e.OpenChangePassword() {
		t.Fatalf("password modal should open")
	}

	if cmd := e.ChangePassword("x", "short", "short"); cmd != nil {
		t.Fatalf("short password must not produce a request")
	}
	if got := e.PasswordError(); got != "Password must be at least 8 characters long." {
		t.Fatalf("unexpected inline error %q", got)
	}
	if cmd := e.ChangePassword("x", "longenough", "different1"); cmd != nil {
		t.Fatalf("mismatch must not produce a request")
	}
	if got := e.PasswordError(); got != "New password and confirm password do not match." {
		t.Fatalf("unexpected inline error %q", got)
	}
	if got := backend.count(http.MethodPost, "/api/change-password/"); got != 0 {
		t.Fatalf("expected zero calls, got %d", got)
	}
}

func TestChangePasswordOutcomes(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/api/change-password/", http.StatusOK, `{"success": false}`)
	e := newTestEngine(t, backend, nil)
	e.OpenChangePassword()

	settle(t, e, e.ChangePassword("old", "newpassword", "newpassword"))
	if got := e.PasswordError(); got != "Failed to change password. Please check your current password." {
		t.Fatalf("unexpected inline error %q", got)
	}
	if !e.Modals().IsOpen(modal.KindChangePassword) {
		t.Fatalf("modal should stay open on failure")
	}

	backend.reply(http.MethodPost, "/api/change-password/", http.StatusOK, `{"success": true}`)
	settle(t, e, e.ChangePassword("old", "newpassword", "newpassword"))
	if e.Modals().Current().Open || e.PasswordError() != "" {
		t.Fatalf("modal should close with a clean form")
	}
	if got := lastToast(t, e); got != "Password changed successfully!" {
		t.Fatalf("unexpected toast %q", got)
	}
	if b := e.Button(ControlPassword); b.Disabled {
		t.Fatalf("password control not restored")
	}
}

func TestDeleteFailureUndoesDisabling(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodDelete, "/api/posts/7/", http.StatusInternalServerError, `{"detail": "server error"}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "7", Body: "keep me"}})

	cmd := e.DeletePost("7", Confirmed)
	if p, _ := e.Posts().Get("7"); !p.Disabled {
		t.Fatalf("post should be disabled while the delete is pending")
	}
	if e.ToggleLike("7") != nil {
		t.Fatalf("disabled post must not accept interaction")
	}
	settle(t, e, cmd)
	p, ok := e.Posts().Get("7")
	if !ok || p.Disabled || p.Removing {
		t.Fatalf("post should be restored, got %+v (%v)", p, ok)
	}
	if got := lastToast(t, e); got != "server error" {
		t.Fatalf("unexpected toast %q", got)
	}
}

func TestDeleteDeclinedDoesNothing(t *testing.T) {
	backend := newFakeBackend()
	e := newTestEngine(t, backend, []feed.Post{{ID: "7"}})
	if cmd := e.DeletePost("7", func(string) bool { return false }); cmd != nil {
		t.Fatalf("declined delete must not produce a request")
	}
	if p, _ := e.Posts().Get("7"); p.Disabled {
		t.Fatalf("declined delete must not disable the post")
	}
}

func TestDeleteSuccessRemovesAfterExit(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodDelete, "/api/posts/7/", http.StatusNoContent, "")
	e := newTestEngine(t, backend, []feed.Post{{ID: "7"}, {ID: "8"}})

	settle(t, e, e.DeletePost("7", Confirmed))
	if p, ok := e.Posts().Get("7"); !ok || !p.Removing {
		t.Fatalf("post should run its exit transition first")
	}
	if got := lastToast(t, e); got != "Post deleted successfully!" {
		t.Fatalf("unexpected toast %q", got)
	}
	e.Update(postExitDoneMsg{postID: "7"})
	if _, ok := e.Posts().Get("7"); ok || e.Posts().Len() != 1 {
		t.Fatalf("post should be removed after the exit transition")
	}
}

func TestUpdatePostSwitchesPrivacy(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/3/", http.StatusOK, `{"body": "old", "privacy": "public"}`)
	backend.reply(http.MethodPut, "/api/posts/3/", http.StatusOK, `{}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "3", Body: "old", Privacy: feed.PrivacyPublic}})

	settle(t, e, e.BeginUpdatePost("3"))
	form := e.EditForm()
	if !e.Modals().IsOpen(modal.KindUpdatePost) || !form.Ready || form.Body != "old" {
		t.Fatalf("edit surface should be open and pre-filled: %+v", form)
	}

	cmd := e.UpdatePost("3", "hi", feed.PrivacyPrivate)
	if b := e.Button(ControlUpdatePost); !b.Disabled || b.Label != "Saving..." {
		t.Fatalf("update control should be busy: %+v", b)
	}
	settle(t, e, cmd)

	if e.Modals().Current().Open {
		t.Fatalf("modal should close on success")
	}
	p, _ := e.Posts().Get("3")
	if p.Body != "hi" || p.Privacy.Icon() != "🔒" || p.Privacy.Label() != "Private" {
		t.Fatalf("unexpected post after update: %+v", p)
	}
	if got := backend.count(http.MethodGet, "/api/posts/"); got != 0 {
		t.Fatalf("update must not reload the feed")
	}
	if b := e.Button(ControlUpdatePost); b.Disabled || b.Label != "Update Post" {
		t.Fatalf("update control not restored: %+v", b)
	}
}

func TestUpdatePostFailureKeepsModal(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/3/", http.StatusOK, `{"body": "old", "privacy": "public"}`)
	backend.reply(http.MethodPut, "/api/posts/3/", http.StatusBadRequest, `not json`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "3", Body: "old"}})

	settle(t, e, e.BeginUpdatePost("3"))
	settle(t, e, e.UpdatePost("3", "draft", feed.PrivacyPublic))
	if !e.Modals().IsOpen(modal.KindUpdatePost) || e.EditForm().Body != "draft" {
		t.Fatalf("modal and draft should survive a failure")
	}
	if got := lastToast(t, e); got != "Failed to update post" {
		t.Fatalf("unexpected toast %q", got)
	}
}

func TestUpdatePostRequiresSnapshot(t *testing.T) {
	e := newTestEngine(t, newFakeBackend(), []feed.Post{{ID: "3"}})
	if e.UpdatePost("3", "hi", feed.PrivacyPrivate) != nil {
		t.Fatalf("update without a snapshot must be rejected")
	}
}

func TestCreatePostReloadsAndRestoresControl(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/api/posts/", http.StatusCreated, `{"id": 9}`)
	reloads := 0
	e := newTestEngine(t, backend, nil, WithReload(func() tea.Cmd {
		reloads++
		return nil
	}))

	cmd := e.CreatePost(feedapi.NewPost{Body: "hello"})
	if b := e.Button(ControlCreatePost); !b.Disabled || b.Label != "Publishing..." {
		t.Fatalf("create control should be busy: %+v", b)
	}
	settle(t, e, cmd)
	if reloads != 1 {
		t.Fatalf("expected one reload, got %d", reloads)
	}
	if got := lastToast(t, e); got != "Post published successfully!" {
		t.Fatalf("unexpected toast %q", got)
	}
	if b := e.Button(ControlCreatePost); b.Disabled || b.Label != "Post" {
		t.Fatalf("create control not restored: %+v", b)
	}
}

func TestCreatePostFailureMessages(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/api/posts/", http.StatusBadRequest, `{"detail": "Body required"}`)
	e := newTestEngine(t, backend, nil)

	settle(t, e, e.CreatePost(feedapi.NewPost{Body: "x"}))
	if got := lastToast(t, e); got != "Body required" {
		t.Fatalf("unexpected toast %q", got)
	}

	backend.reply(http.MethodPost, "/api/posts/", http.StatusCreated, `<html>`)
	settle(t, e, e.CreatePost(feedapi.NewPost{Body: "x"}))
	if got := lastToast(t, e); got != "An error occurred while creating the post." {
		t.Fatalf("unexpected toast %q", got)
	}
	if b := e.Button(ControlCreatePost); b.Disabled {
		t.Fatalf("control must be restored after a malformed response")
	}
}

func TestLoadFeedReplacesMirror(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/", http.StatusOK, `[{"id": 1, "body": "a"}, {"id": 2, "body": "b"}]`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "old"}})

	settle(t, e, e.LoadFeed())
	if e.Posts().Len() != 2 {
		t.Fatalf("expected 2 posts, got %d", e.Posts().Len())
	}
	if _, ok := e.Posts().Get("old"); ok {
		t.Fatalf("stale post should be gone")
	}
}

func TestBioUpdate(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodPost, "/profile/", http.StatusOK, "")
	e := newTestEngine(t, backend, nil)
	if e.Bio() != "No bio available" || e.BioButtonLabel() != "Add Bio" {
		t.Fatalf("unexpected empty bio display")
	}

	cmd := e.UpdateBio("Gopher at heart")
	if b := e.Button(ControlBio); !b.Disabled || b.Label != "Saving..." {
		t.Fatalf("bio control should be busy: %+v", b)
	}
	settle(t, e, cmd)
	if e.Bio() != "Gopher at heart" || e.BioButtonLabel() != "Update Bio" {
		t.Fatalf("bio not updated: %q", e.Bio())
	}
	if got := lastToast(t, e); got != "Bio updated successfully!" {
		t.Fatalf("unexpected toast %q", got)
	}
}

func TestBioTooLongIsRejectedLocally(t *testing.T) {
	backend := newFakeBackend()
	e := newTestEngine(t, backend, nil)
	long := make([]rune, MaxBioLength+1)
	for i := range long {
		long[i] = 'a'
	}
	e.UpdateBio(string(long))
	if got := backend.count(http.MethodPost, "/profile/"); got != 0 {
		t.Fatalf("expected zero calls, got %d", got)
	}
	if got := lastToast(t, e); got != "Bio cannot exceed 500 characters." {
		t.Fatalf("unexpected toast %q", got)
	}
}

func TestShareSheetLinks(t *testing.T) {
	e := New(nil, []feed.Post{{ID: "5", Body: "hi there"}}, WithShareBaseURL("http://example.com/"))
	if !e.OpenShare("5") {
		t.Fatalf("share sheet should open")
	}
	sheet := e.Share()
	if sheet.URL != "http://example.com/post/5" {
		t.Fatalf("unexpected url %q", sheet.URL)
	}
	if sheet.Twitter != "https://twitter.com/intent/tweet?text=hi+there&url=http%3A%2F%2Fexample.com%2Fpost%2F5" {
		t.Fatalf("unexpected twitter link %q", sheet.Twitter)
	}
	e.CloseModal()
	if e.Share().URL != "" {
		t.Fatalf("share sheet should clear on close")
	}
}

func TestStaleFeedLoadDoesNotRestoreDeletedPost(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/", http.StatusOK, `[{"id": 7, "body": "gone"}, {"id": 8, "body": "kept"}]`)
	backend.reply(http.MethodDelete, "/api/posts/7/", http.StatusNoContent, "")
	e := newTestEngine(t, backend, []feed.Post{{ID: "7"}, {ID: "8"}})

	load := e.LoadFeed()
	loaded := load()
	settle(t, e, e.DeletePost("7", Confirmed))
	e.Update(postExitDoneMsg{postID: "7"})
	if _, ok := e.Update(loaded); !ok {
		t.Fatalf("engine did not consume the feed result")
	}
	if p, ok := e.Posts().Get("7"); ok {
		t.Fatalf("deleted post came back from an older load: %+v", p)
	}
	if _, ok := e.Posts().Get("8"); !ok {
		t.Fatalf("other posts should be loaded")
	}

	backend.reply(http.MethodGet, "/api/posts/", http.StatusOK, `[{"id": 8, "body": "kept"}]`)
	settle(t, e, e.LoadFeed())
	if e.Posts().Len() != 1 {
		t.Fatalf("expected 1 post after a fresh load, got %d", e.Posts().Len())
	}
}

func TestFeedLoadDuringExitKeepsTransition(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/", http.StatusOK, `[{"id": 7, "body": "gone"}]`)
	backend.reply(http.MethodDelete, "/api/posts/7/", http.StatusNoContent, "")
	e := newTestEngine(t, backend, []feed.Post{{ID: "7"}})

	load := e.LoadFeed()
	loaded := load()
	settle(t, e, e.DeletePost("7", Confirmed))
	e.Update(loaded)
	if p, ok := e.Posts().Get("7"); !ok || !p.Removing {
		t.Fatalf("post should keep running its exit transition, got %+v (%v)", p, ok)
	}
	e.Update(postExitDoneMsg{postID: "7"})
	if e.Posts().Len() != 0 {
		t.Fatalf("post should be removed after the exit transition")
	}
}

func TestFeedLoadKeepsPendingDeleteFrozen(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/", http.StatusOK, `[{"id": 7, "body": "x"}]`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "7"}})

	load := e.LoadFeed()
	if e.DeletePost("7", Confirmed) == nil {
		t.Fatalf("expected a delete request")
	}
	settle(t, e, load)
	if p, ok := e.Posts().Get("7"); !ok || !p.Disabled {
		t.Fatalf("post with a delete in flight must stay disabled, got %+v", p)
	}
	if e.ToggleLike("7") != nil {
		t.Fatalf("disabled post must not accept likes")
	}
}

func TestReloadRequestedDuringLoadRunsAfterIt(t *testing.T) {
	backend := newFakeBackend()
	var mu sync.Mutex
	created := false
	backend.handle(http.MethodGet, "/api/posts/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if created {
			_, _ = io.WriteString(w, `[{"id": 9, "body": "new"}, {"id": 1, "body": "old"}]`)
			return
		}
		_, _ = io.WriteString(w, `[{"id": 1, "body": "old"}]`)
	})
	backend.handle(http.MethodPost, "/api/posts/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		created = true
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 9}`)
	})
	e := newTestEngine(t, backend, nil)

	first := e.LoadFeed()
	stale := first()
	settle(t, e, e.CreatePost(feedapi.NewPost{Body: "new"}))

	follow, ok := e.Update(stale)
	if !ok {
		t.Fatalf("engine did not consume the feed result")
	}
	if follow == nil {
		t.Fatalf("a reload requested during the load should run afterwards")
	}
	settle(t, e, follow)
	if _, ok := e.Posts().Get("9"); !ok {
		t.Fatalf("new post should appear after the follow-up load")
	}
	if got := backend.count(http.MethodGet, "/api/posts/"); got != 2 {
		t.Fatalf("expected 2 list calls, got %d", got)
	}
}

func TestCommentPostedDuringLoadSurvivesList(t *testing.T) {
	backend := newFakeBackend()
	backend.reply(http.MethodGet, "/api/posts/9/comments/", http.StatusOK, `[{"id": 1, "body": "old"}]`)
	backend.reply(http.MethodPost, "/api/posts/9/comments/", http.StatusCreated, `{"id": 2, "body": "mine"}`)
	e := newTestEngine(t, backend, []feed.Post{{ID: "9", CommentCount: 1}})

	open := e.OpenComments("9")
	listed := open()
	settle(t, e, e.PostComment("9", "mine"))
	e.Update(listed)

	items := e.Thread().Items()
	if len(items) != 2 || items[0].Body != "mine" || items[1].Body != "old" {
		t.Fatalf("expected own comment above the loaded list, got %+v", items)
	}
	if p, _ := e.Posts().Get("9"); p.CommentCount != len(items) {
		t.Fatalf("comment count %d disagrees with thread of %d", p.CommentCount, len(items))
	}
}
