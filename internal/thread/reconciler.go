// Package thread keeps the comment list shown in the comments modal and
// merges newly created comments into it without a re-fetch.
package thread

import (
	"time"

	"github.com/kingrea/socialhub/internal/feed"
)

// Comment is immutable once created.
type Comment struct {
	ID        string
	PostID    string
	Body      string
	Author    feed.Author
	CreatedAt time.Time
}

// Status describes what the thread area currently shows.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusEmpty
	StatusLoadFailed
	StatusOffline
)

// Placeholder is the text block shown instead of a list.
type Placeholder struct {
	Title  string
	Detail string
}

var (
	placeholderEmpty   = Placeholder{Title: "No comments yet", Detail: "Be the first to share your thoughts!"}
	placeholderFailed  = Placeholder{Title: "Failed to load comments", Detail: "Please try again later"}
	placeholderOffline = Placeholder{Title: "Connection Error", Detail: "Please check your internet connection"}
	placeholderLoading = Placeholder{Title: "Loading comments..."}
)

// Reconciler holds the thread for at most one post. Every call is keyed by
// the post and the modal generation it was started under; anything else is
// stale and ignored.
type Reconciler struct {
	postID   string
	gen      uint64
	status   Status
	comments []Comment
	// local holds comments created since Begin, newest first. A list load
	// that settles after them was read before they existed.
	local []Comment
}

// New creates an idle reconciler.
func New() *Reconciler {
	return &Reconciler{}
}

// Begin clears the thread and marks it loading for postID.
func (r *Reconciler) Begin(postID string, gen uint64) {
	r.postID = postID
	r.gen = gen
	r.status = StatusLoading
	r.comments = nil
	r.local = nil
}

// Loaded renders the server list in the order received. Comments created
// while the list was loading stay on top unless the list already has them.
func (r *Reconciler) Loaded(postID string, gen uint64, comments []Comment) bool {
	if !r.owns(postID, gen) {
		return false
	}
	seen := make(map[string]struct{}, len(comments))
	for _, c := range comments {
		seen[c.ID] = struct{}{}
	}
	r.comments = make([]Comment, 0, len(r.local)+len(comments))
	for _, c := range r.local {
		if _, ok := seen[c.ID]; !ok {
			r.comments = append(r.comments, c)
		}
	}
	r.comments = append(r.comments, comments...)
	if len(r.comments) == 0 {
		r.status = StatusEmpty
	} else {
		r.status = StatusLoaded
	}
	return true
}

// Failed shows a failure placeholder. offline selects the connection-error
// variant used when no response arrived at all. Comments created meanwhile
// stay visible instead.
func (r *Reconciler) Failed(postID string, gen uint64, offline bool) bool {
	if !r.owns(postID, gen) {
		return false
	}
	if len(r.local) > 0 {
		r.comments = append([]Comment(nil), r.local...)
		r.status = StatusLoaded
		return true
	}
	r.comments = nil
	if offline {
		r.status = StatusOffline
	} else {
		r.status = StatusLoadFailed
	}
	return true
}

// Insert puts a newly created comment at the top. When a placeholder is
// showing, the comment replaces it.
func (r *Reconciler) Insert(postID string, gen uint64, c Comment) bool {
	if !r.owns(postID, gen) {
		return false
	}
	r.local = append([]Comment{c}, r.local...)
	if r.status != StatusLoaded {
		r.comments = []Comment{c}
		r.status = StatusLoaded
		return true
	}
	r.comments = append([]Comment{c}, r.comments...)
	return true
}

// Clear drops the cached list.
func (r *Reconciler) Clear() {
	r.postID = ""
	r.status = StatusIdle
	r.comments = nil
	r.local = nil
}

// PostID returns the post whose thread is held.
func (r *Reconciler) PostID() string {
	return r.postID
}

// Status returns what the thread area shows.
func (r *Reconciler) Status() Status {
	return r.status
}

// Items returns the rendered comments top to bottom.
func (r *Reconciler) Items() []Comment {
	out := make([]Comment, len(r.comments))
	copy(out, r.comments)
	return out
}

// Placeholder returns the block shown instead of a list, if any.
func (r *Reconciler) Placeholder() (Placeholder, bool) {
	switch r.status {
	case StatusLoading:
		return placeholderLoading, true
	case StatusEmpty:
		return placeholderEmpty, true
	case StatusLoadFailed:
		return placeholderFailed, true
	case StatusOffline:
		return placeholderOffline, true
	default:
		return Placeholder{}, false
	}
}

func (r *Reconciler) owns(postID string, gen uint64) bool {
	return r.status != StatusIdle && r.postID == postID && r.gen == gen
}
