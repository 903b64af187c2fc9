package feedapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kingrea/socialhub/internal/feed"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, append([]Option{WithRetries(0)}, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := New("http://"); err == nil {
		t.Fatalf("expected host error")
	}
}

func TestToggleLikeSendsCredentials(t *testing.T) {
	var gotMethod, gotPath, gotCSRF, gotSession string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCSRF = r.Header.Get("X-CSRFToken")
		if cookie, err := r.Cookie("sessionid"); err == nil {
			gotSession = cookie.Value
		}
		_, _ = io.WriteString(w, `{"liked": true, "like_count": 5}`)
	}, WithCSRFToken("tok"), WithSession("sess"))

	state, err := client.ToggleLike(context.Background(), "7")
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if !state.Liked || state.Count != 5 {
		t.Fatalf("unexpected state %+v", state)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/posts/7/toggle_like/" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotCSRF != "tok" || gotSession != "sess" {
		t.Fatalf("credentials not sent: csrf=%q session=%q", gotCSRF, gotSession)
	}
}

func TestToggleLikeAcceptsStatusForm(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status": "unliked", "like_count": 3}`)
	})
	state, err := client.ToggleLike(context.Background(), "1")
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if state.Liked || state.Count != 3 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestToggleLikeMissingCountIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"liked": true}`)
	})
	_, err := client.ToggleLike(context.Background(), "1")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestDeleteFailureCarriesDetailWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail": "server error"}`)
	}, WithRetries(3))

	err := client.DeletePost(context.Background(), "9")
	detail, ok := Detail(err)
	if !ok || detail != "server error" {
		t.Fatalf("expected server detail, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("writes must not be retried, got %d calls", calls.Load())
	}
}

func TestErrorWithoutJSONHasNoDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "<html>bad</html>")
	})
	err := client.UpdatePost(context.Background(), "3", "x", feed.PrivacyPrivate)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail != "" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestReadsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"body": "hello", "privacy": "private"}`)
	}, WithRetries(1))

	snap, err := client.GetPost(context.Background(), "3")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if snap.Body != "hello" || snap.Privacy != feed.PrivacyPrivate {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestTransportErrorWhenServerIsGone(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	_, err := client.ListComments(context.Background(), "1")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestListCommentsDecodesAuthors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/posts/4/comments/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"id": 11, "body": "first", "created_at": "2024-05-01T10:00:00Z",
			 "user": {"f_name": "Ada", "l_name": "Byron", "profile": {"avatar": {"url": "/a.png"}}}},
			{"id": "12", "body": "second", "created_at": "2024-05-01T11:00:00Z",
			 "user": {"f_name": "Sam", "l_name": "", "profile": null}}
		]`)
	})
	comments, err := client.ListComments(context.Background(), "4")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != "11" || comments[0].Author.AvatarURL != "/a.png" || comments[0].PostID != "4" {
		t.Fatalf("unexpected first comment %+v", comments[0])
	}
	if comments[1].ID != "12" || comments[1].Author.DisplayName() != "Sam" || comments[1].Author.AvatarURL != "" {
		t.Fatalf("unexpected second comment %+v", comments[1])
	}
}

func TestCreatePostSendsMultipart(t *testing.T) {
	var body, privacy, image string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		body = r.FormValue("body")
		privacy = r.FormValue("privacy")
		if file, _, err := r.FormFile("image"); err == nil {
			data, _ := io.ReadAll(file)
			image = string(data)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 42}`)
	})
	id, err := client.CreatePost(context.Background(), NewPost{
		Body:      "hello",
		Privacy:   feed.PrivacyPublic,
		MediaName: "cat.png",
		Media:     strings.NewReader("pixels"),
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if id != "42" || body != "hello" || privacy != "public" || image != "pixels" {
		t.Fatalf("unexpected create: id=%q body=%q privacy=%q image=%q", id, body, privacy, image)
	}
}

func TestChangePasswordRequiresSuccessFlag(t *testing.T) {
	var got map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"success": false, "detail": "Current password is incorrect."}`)
	})
	err := client.ChangePassword(context.Background(), "old", "newpassword")
	detail, ok := Detail(err)
	if !ok || detail != "Current password is incorrect." {
		t.Fatalf("expected detail error, got %v", err)
	}
	if got["current_password"] != "old" || got["new_password"] != "newpassword" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestUpdateBioPostsProfileForm(t *testing.T) {
	var path, bio, token string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = r.ParseMultipartForm(1 << 20)
		bio = r.FormValue("bio")
		token = r.FormValue("csrfmiddlewaretoken")
	}, WithCSRFToken("tok"), WithProfilePath("/me/"))
	if err := client.UpdateBio(context.Background(), "hi there"); err != nil {
		t.Fatalf("update bio: %v", err)
	}
	if path != "/me/" || bio != "hi there" || token != "tok" {
		t.Fatalf("unexpected form: path=%q bio=%q token=%q", path, bio, token)
	}
}

func TestListPostsAcceptsPaginatedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results": [{"id": 1, "body": "a", "privacy": "private", "like_count": 2, "is_liked": true}]}`)
	})
	posts, err := client.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "1" || posts[0].Privacy != feed.PrivacyPrivate || !posts[0].Liked {
		t.Fatalf("unexpected posts %+v", posts)
	}
}

func TestListPostsTreatsUnknownPrivacyAsPrivate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 1, "body": "a", "privacy": "friends"}, {"id": 2, "body": "b"}, {"id": 3, "body": "c", "privacy": "public"}]`)
	})
	posts, err := client.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	for i, want := range []feed.Privacy{feed.PrivacyPrivate, feed.PrivacyPrivate, feed.PrivacyPublic} {
		if posts[i].Privacy != want {
			t.Fatalf("post %s: expected %s, got %s", posts[i].ID, want, posts[i].Privacy)
		}
	}
}
