package mutation

import (
	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/feedapi"
	"github.com/kingrea/socialhub/internal/thread"
)

// Op names a kind of mutation for the pending table.
type Op int

const (
	OpToggleLike Op = iota + 1
	OpCreatePost
	OpLoadPost
	OpUpdatePost
	OpDeletePost
	OpPostComment
	OpUpdateBio
	OpChangePassword
	OpLoadFeed
)

func (o Op) String() string {
	switch o {
	case OpToggleLike:
		return "toggle_like"
	case OpCreatePost:
		return "create_post"
	case OpLoadPost:
		return "load_post"
	case OpUpdatePost:
		return "update_post"
	case OpDeletePost:
		return "delete_post"
	case OpPostComment:
		return "post_comment"
	case OpUpdateBio:
		return "update_bio"
	case OpChangePassword:
		return "change_password"
	case OpLoadFeed:
		return "load_feed"
	default:
		return "unknown"
	}
}

// Key identifies one in-flight mutation. Entity-less mutations use an
// empty EntityID.
type Key struct {
	EntityID string
	Op       Op
}

// Settle messages. Each is produced by exactly one command and carries
// everything Update needs; commands never touch engine state.

type likeSettledMsg struct {
	postID string
	state  feedapi.LikeState
	err    error
}

type postCreatedMsg struct {
	id  string
	err error
}

type feedLoadedMsg struct {
	seq   uint64
	posts []feed.Post
	err   error
}

type postLoadedMsg struct {
	postID   string
	snapshot feedapi.PostSnapshot
	err      error
}

type postUpdatedMsg struct {
	postID  string
	gen     uint64
	body    string
	privacy feed.Privacy
	err     error
}

type postDeletedMsg struct {
	postID string
	// gen is the update modal generation when the delete started inside it.
	gen       uint64
	fromModal bool
	err       error
}

type postExitDoneMsg struct {
	postID string
}

type commentsLoadedMsg struct {
	postID   string
	gen      uint64
	comments []thread.Comment
	err      error
}

type commentCreatedMsg struct {
	postID  string
	gen     uint64
	typed   string
	comment thread.Comment
	err     error
}

type bioUpdatedMsg struct {
	bio string
	err error
}

type passwordChangedMsg struct {
	gen uint64
	err error
}
