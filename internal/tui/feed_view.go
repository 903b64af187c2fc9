package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/socialhub/internal/counter"
	"github.com/kingrea/socialhub/internal/feed"
)

var (
	authorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	likedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")).Faint(true)
)

// postItem adapts a post mirror to the list widget.
type postItem struct {
	post feed.Post
}

func (i postItem) FilterValue() string { return i.post.Body }

// postDelegate draws one post card. Counters come from the animator so a
// running animation shows its intermediate value.
type postDelegate struct {
	app *App
}

func (d postDelegate) Height() int                         { return 3 }
func (d postDelegate) Spacing() int                        { return 1 }
func (d postDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d postDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	pi, ok := item.(postItem)
	if !ok {
		return
	}
	post := pi.post
	width := max(20, m.Width()-2)

	indicator := " "
	if index == m.Index() {
		indicator = ">"
	}
	author := post.Author
	if strings.TrimSpace(author) == "" {
		author = "Anonymous"
	}
	meta := post.Privacy.Label() + postAge(post.CreatedAt)
	body := "  " + truncate(firstLine(post.Body), width-2)

	if post.Disabled || post.Removing {
		status := "  deleting..."
		if !post.Removing {
			status = "  " + d.plainCounters(post)
		}
		lines := []string{
			fmt.Sprintf("%s %s · %s %s", indicator, author, post.Privacy.Icon(), meta),
			body,
			status,
		}
		fmt.Fprint(w, disabledStyle.Render(strings.Join(lines, "\n")))
		return
	}

	lines := []string{
		fmt.Sprintf("%s %s · %s %s", indicator, authorStyle.Render(author), post.Privacy.Icon(), metaStyle.Render(meta)),
		body,
		"  " + d.renderCounters(post),
	}
	fmt.Fprint(w, strings.Join(lines, "\n"))
}

func (d postDelegate) counts(post feed.Post) (int, int) {
	if d.app == nil {
		return post.LikeCount, post.CommentCount
	}
	counters := d.app.engine.Counters()
	return counters.Display(counter.LikeKey(post.ID), post.LikeCount),
		counters.Display(counter.CommentKey(post.ID), post.CommentCount)
}

func (d postDelegate) plainCounters(post feed.Post) string {
	likes, comments := d.counts(post)
	return fmt.Sprintf("♡ %d   💬 %d", likes, comments)
}

func (d postDelegate) renderCounters(post feed.Post) string {
	likes, comments := d.counts(post)
	heart := countStyle.Render("♡")
	if post.Liked {
		heart = likedStyle.Render("♥")
	}
	return fmt.Sprintf("%s %s   💬 %s", heart,
		countStyle.Render(fmt.Sprint(likes)),
		countStyle.Render(fmt.Sprint(comments)))
}

func postAge(created time.Time) string {
	if created.IsZero() {
		return ""
	}
	age := time.Since(created)
	switch {
	case age < time.Minute:
		return " · just now"
	case age < time.Hour:
		return fmt.Sprintf(" · %dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf(" · %dh", int(age.Hours()))
	default:
		return " · " + created.Format("Jan 2")
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + " …"
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
