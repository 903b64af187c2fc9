package feed

type action int

const (
	actionKeep action = iota
	actionRemove
)

// Patch is one state change derived from a settled mutation.
type Patch interface {
	Target() string
	apply(p *Post) action
}

// LikeSettled sets the viewer's like state and count from the server reply.
type LikeSettled struct {
	PostID string
	Liked  bool
	Count  int
}

func (p LikeSettled) Target() string { return p.PostID }

func (p LikeSettled) apply(post *Post) action {
	post.Liked = p.Liked
	post.LikeCount = max(0, p.Count)
	return actionKeep
}

// Edited replaces body and privacy after a successful update.
type Edited struct {
	PostID  string
	Body    string
	Privacy Privacy
}

func (p Edited) Target() string { return p.PostID }

func (p Edited) apply(post *Post) action {
	post.Body = p.Body
	post.Privacy = p.Privacy
	return actionKeep
}

// CommentAdded bumps the comment counter by one.
type CommentAdded struct {
	PostID string
}

func (p CommentAdded) Target() string { return p.PostID }

func (p CommentAdded) apply(post *Post) action {
	post.CommentCount++
	return actionKeep
}

// Disabled dims (On) or restores a card around a pending delete.
type Disabled struct {
	PostID string
	On     bool
}

func (p Disabled) Target() string { return p.PostID }

func (p Disabled) apply(post *Post) action {
	post.Disabled = p.On
	if !p.On {
		post.Removing = false
	}
	return actionKeep
}

// ExitStarted begins the exit transition of a deleted post.
type ExitStarted struct {
	PostID string
}

func (p ExitStarted) Target() string { return p.PostID }

func (p ExitStarted) apply(post *Post) action {
	post.Removing = true
	return actionKeep
}

// Removed drops the post from the feed.
type Removed struct {
	PostID string
}

func (p Removed) Target() string { return p.PostID }

func (p Removed) apply(*Post) action {
	return actionRemove
}
