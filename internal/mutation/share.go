package mutation

import (
	"net/url"
	"strings"

	"github.com/kingrea/socialhub/internal/feed"
)

// ShareSheet lists the ways a post can be shared.
type ShareSheet struct {
	PostID   string
	Title    string
	URL      string
	Twitter  string
	Facebook string
}

// NewShareSheet builds the share links for post under base.
func NewShareSheet(base string, post feed.Post) ShareSheet {
	link := strings.TrimRight(base, "/") + "/post/" + url.PathEscape(post.ID)
	twitter := url.Values{}
	twitter.Set("text", post.Body)
	twitter.Set("url", link)
	facebook := url.Values{}
	facebook.Set("u", link)
	return ShareSheet{
		PostID:   post.ID,
		Title:    "Check out this post on SocialHub",
		URL:      link,
		Twitter:  "https://twitter.com/intent/tweet?" + twitter.Encode(),
		Facebook: "https://www.facebook.com/sharer/sharer.php?" + facebook.Encode(),
	}
}
