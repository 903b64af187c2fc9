package feedapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/thread"
)

// PostSnapshot is the editable part of a post, read before editing.
type PostSnapshot struct {
	Body    string
	Privacy feed.Privacy
}

// LikeState is the server's view of a like toggle.
type LikeState struct {
	Liked bool
	Count int
}

// NewPost is the create-post form payload. Media is optional.
type NewPost struct {
	Body      string
	Privacy   feed.Privacy
	MediaName string
	Media     io.Reader
}

// flexID accepts both numeric and string identifiers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

type postWire struct {
	ID           flexID    `json:"id"`
	Body         string    `json:"body"`
	Privacy      string    `json:"privacy"`
	User         string    `json:"user"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"like_count"`
	IsLiked      bool      `json:"is_liked"`
	CommentCount int       `json:"comment_count"`
}

func (w postWire) toPost() (feed.Post, error) {
	if w.ID == "" {
		return feed.Post{}, fmt.Errorf("post without id")
	}
	// An unreadable privacy is shown as private, never as public.
	privacy, err := feed.ParsePrivacy(w.Privacy)
	if err != nil {
		privacy = feed.PrivacyPrivate
	}
	return feed.Post{
		ID:           string(w.ID),
		Body:         w.Body,
		Privacy:      privacy,
		Author:       w.User,
		LikeCount:    max(0, w.LikeCount),
		Liked:        w.IsLiked,
		CommentCount: max(0, w.CommentCount),
		CreatedAt:    w.CreatedAt,
	}, nil
}

type snapshotWire struct {
	Body    *string `json:"body"`
	Privacy string  `json:"privacy"`
}

type createdWire struct {
	ID flexID `json:"id"`
}

// likeWire accepts {liked, like_count} and the older {status, like_count}.
type likeWire struct {
	Liked     *bool   `json:"liked"`
	Status    *string `json:"status"`
	LikeCount *int    `json:"like_count"`
}

func (w likeWire) toState() (LikeState, error) {
	if w.LikeCount == nil {
		return LikeState{}, fmt.Errorf("like_count missing")
	}
	state := LikeState{Count: max(0, *w.LikeCount)}
	switch {
	case w.Liked != nil:
		state.Liked = *w.Liked
	case w.Status != nil:
		switch strings.ToLower(*w.Status) {
		case "liked":
			state.Liked = true
		case "unliked":
			state.Liked = false
		default:
			return LikeState{}, fmt.Errorf("unknown like status %q", *w.Status)
		}
	default:
		return LikeState{}, fmt.Errorf("liked flag missing")
	}
	return state, nil
}

type avatarWire struct {
	URL string `json:"url"`
}

type profileWire struct {
	Avatar *avatarWire `json:"avatar"`
}

type userWire struct {
	FirstName string       `json:"f_name"`
	LastName  string       `json:"l_name"`
	Profile   *profileWire `json:"profile"`
}

type commentWire struct {
	ID        flexID    `json:"id"`
	Post      flexID    `json:"post"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	User      *userWire `json:"user"`
}

func (w commentWire) toComment(postID string) (thread.Comment, error) {
	if w.ID == "" {
		return thread.Comment{}, fmt.Errorf("comment without id")
	}
	c := thread.Comment{
		ID:        string(w.ID),
		PostID:    postID,
		Body:      w.Body,
		CreatedAt: w.CreatedAt,
	}
	if w.Post != "" {
		c.PostID = string(w.Post)
	}
	if w.User != nil {
		c.Author = feed.Author{FirstName: w.User.FirstName, LastName: w.User.LastName}
		if w.User.Profile != nil && w.User.Profile.Avatar != nil {
			c.Author.AvatarURL = w.User.Profile.Avatar.URL
		}
	}
	return c, nil
}

type passwordWire struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

type detailWire struct {
	Detail string `json:"detail"`
}
