// Package feed holds the UI-local mirror of the posts on screen. The API is
// the source of truth; this mirror is only changed by applying patches built
// from settled responses.
package feed

import (
	"fmt"
	"strings"
	"time"
)

// Privacy is the audience of a post.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// ParsePrivacy accepts "public" or "private" in any case.
func ParsePrivacy(raw string) (Privacy, error) {
	switch Privacy(strings.ToLower(strings.TrimSpace(raw))) {
	case PrivacyPublic:
		return PrivacyPublic, nil
	case PrivacyPrivate:
		return PrivacyPrivate, nil
	default:
		return "", fmt.Errorf("feed: unknown privacy %q", raw)
	}
}

// Toggle flips between public and private.
func (p Privacy) Toggle() Privacy {
	if p == PrivacyPrivate {
		return PrivacyPublic
	}
	return PrivacyPrivate
}

// Icon and Label form the indicator pair shown on a post card.
func (p Privacy) Icon() string {
	if p == PrivacyPrivate {
		return "🔒"
	}
	return "🌐"
}

func (p Privacy) Label() string {
	if p == PrivacyPrivate {
		return "Private"
	}
	return "Public"
}

// Author is the display identity attached to posts and comments.
type Author struct {
	FirstName string
	LastName  string
	AvatarURL string
}

// DisplayName joins first and last name.
func (a Author) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Post is the mirror of one visible post.
type Post struct {
	ID           string
	Body         string
	Privacy      Privacy
	Author       string
	LikeCount    int
	Liked        bool
	CommentCount int
	CreatedAt    time.Time

	// Disabled dims the card and freezes interaction while a delete is pending.
	Disabled bool
	// Removing is set while the card runs its exit transition.
	Removing bool
}

// Store is the ordered set of visible posts.
type Store struct {
	posts []Post
	index map[string]int
}

// NewStore creates a store holding posts in the given order.
func NewStore(posts []Post) *Store {
	s := &Store{}
	s.Replace(posts)
	return s
}

// Replace swaps in a freshly loaded list.
func (s *Store) Replace(posts []Post) {
	s.posts = make([]Post, 0, len(posts))
	s.index = make(map[string]int, len(posts))
	for _, p := range posts {
		if _, dup := s.index[p.ID]; dup || p.ID == "" {
			continue
		}
		s.index[p.ID] = len(s.posts)
		s.posts = append(s.posts, p)
	}
}

// Get returns the post with id.
func (s *Store) Get(id string) (Post, bool) {
	idx, ok := s.index[id]
	if !ok {
		return Post{}, false
	}
	return s.posts[idx], true
}

// Posts returns a copy of the visible posts in order.
func (s *Store) Posts() []Post {
	out := make([]Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Len reports the number of visible posts.
func (s *Store) Len() int {
	return len(s.posts)
}

// At returns the post at position i.
func (s *Store) At(i int) (Post, bool) {
	if i < 0 || i >= len(s.posts) {
		return Post{}, false
	}
	return s.posts[i], true
}

// Apply runs patch against its target. It returns false when the target is
// no longer in the feed; the patch is then dropped.
func (s *Store) Apply(patch Patch) bool {
	if patch == nil {
		return false
	}
	idx, ok := s.index[patch.Target()]
	if !ok {
		return false
	}
	if patch.apply(&s.posts[idx]) == actionRemove {
		s.remove(idx)
	}
	return true
}

func (s *Store) remove(idx int) {
	s.posts = append(s.posts[:idx], s.posts[idx+1:]...)
	s.index = make(map[string]int, len(s.posts))
	for i, p := range s.posts {
		s.index[p.ID] = i
	}
}
