package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/socialhub/internal/modal"
	"github.com/kingrea/socialhub/internal/mutation"
	"github.com/kingrea/socialhub/internal/notify"
	"github.com/kingrea/socialhub/internal/thread"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(1, 2)
	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
	busyButtonStyle = buttonStyle.Background(lipgloss.Color("#444444"))

	toastStyles = map[notify.Severity]lipgloss.Style{
		notify.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#4CAF50")).Padding(0, 1),
		notify.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF6B6B")).Padding(0, 1),
	}
)

// View renders the current state to a string.
func (a *App) View() string {
	width, height := a.size()
	toasts := a.renderToasts()

	if state := a.engine.Modals().Current(); state.Open {
		return a.renderModalScreen(state, toasts, width, height)
	}
	a.modalBox = rect{}

	feedWidth, sideWidth := a.columns()
	left := boxStyle.Width(max(20, feedWidth)).Render(a.renderFeedArea(feedWidth - 4))
	body := left
	if sideWidth > 0 {
		right := boxStyle.Width(max(20, sideWidth)).Render(a.renderProfilePanel(sideWidth - 4))
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	sections := []string{titleStyle.Render("⬡ SOCIALHUB")}
	if toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, body)
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, hintStyle.Render(a.help.ShortHelpView(a.keys.feedHelp())))
	return strings.Join(sections, "\n")
}

func (a *App) size() (int, int) {
	width, height := a.width, a.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 30
	}
	return width, height
}

func modalWidth(screen int) int {
	if screen <= 0 {
		screen = 100
	}
	return min(72, max(30, screen-8))
}

// renderModalScreen draws the open modal centered over a blank backdrop and
// records its bounds so clicks can be classified.
func (a *App) renderModalScreen(state modal.State, toasts string, width, height int) string {
	top := 0
	if toasts != "" {
		top = lipgloss.Height(toasts)
	}
	box := modalStyle.Width(modalWidth(width)).Render(a.renderModal(state))
	boxW, boxH := lipgloss.Width(box), lipgloss.Height(box)
	areaH := max(boxH, height-top)
	a.modalBox = rect{
		x: max(0, (width-boxW)/2),
		y: top + max(0, (areaH-boxH)/2),
		w: boxW,
		h: boxH,
	}
	placed := lipgloss.Place(width, areaH, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars("·"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("#333333")))
	if toasts == "" {
		return placed
	}
	return toasts + "\n" + placed
}

func (a *App) renderModal(state modal.State) string {
	switch state.Kind {
	case modal.KindComments:
		return a.renderCommentsModal()
	case modal.KindUpdatePost:
		return a.renderUpdateModal()
	case modal.KindChangePassword:
		return a.renderPasswordModal()
	case modal.KindShare:
		return a.renderShareModal()
	}
	return ""
}

func (a *App) renderCommentsModal() string {
	th := a.engine.Thread()
	lines := []string{headStyle.Render("Comments"), ""}
	if ph, ok := th.Placeholder(); ok {
		lines = append(lines, renderPlaceholder(ph, a.spinner.View(), th.Status() == thread.StatusLoading))
	} else {
		for _, c := range th.Items() {
			lines = append(lines, renderComment(c))
		}
	}
	lines = append(lines,
		"",
		a.comment.View(),
		a.renderButton(mutation.ControlComment),
		hintStyle.Render("ctrl+s send · esc close"),
	)
	return strings.Join(lines, "\n")
}

func renderPlaceholder(ph thread.Placeholder, spin string, loading bool) string {
	title := ph.Title
	if loading {
		title = spin + " " + title
	}
	if ph.Detail == "" {
		return title
	}
	return title + "\n" + hintStyle.Render(ph.Detail)
}

func renderComment(c thread.Comment) string {
	name := c.Author.DisplayName()
	if name == "" {
		name = "Anonymous"
	}
	head := authorStyle.Render(name) + metaStyle.Render(postAge(c.CreatedAt))
	return head + "\n  " + c.Body
}

func (a *App) renderUpdateModal() string {
	form := a.engine.EditForm()
	lines := []string{headStyle.Render("Update Post"), ""}
	if !form.Ready {
		lines = append(lines, a.spinner.View()+" Loading post...", "", hintStyle.Render("esc close"))
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		a.editor.View(),
		fmt.Sprintf("Privacy: %s %s", a.editPrivacy.Icon(), a.editPrivacy.Label()),
		"",
		a.renderButton(mutation.ControlUpdatePost),
	)
	if a.confirmID != "" {
		lines = append(lines, "", errorStyle.Render("Are you sure you want to delete this post?")+" "+hintStyle.Render("y/n"))
	}
	lines = append(lines, hintStyle.Render("ctrl+s save · ctrl+p privacy · ctrl+d delete · esc close"))
	return strings.Join(lines, "\n")
}

func (a *App) renderPasswordModal() string {
	lines := []string{headStyle.Render("Change Password"), ""}
	for _, input := range a.passwords {
		lines = append(lines, input.View())
	}
	if msg := a.engine.PasswordError(); msg != "" {
		lines = append(lines, "", errorStyle.Render(msg))
	}
	lines = append(lines,
		"",
		a.renderButton(mutation.ControlPassword),
		hintStyle.Render("tab next field · enter submit · esc close"),
	)
	return strings.Join(lines, "\n")
}

func (a *App) renderShareModal() string {
	sheet := a.engine.Share()
	lines := []string{
		headStyle.Render("Share Post"),
		"",
		sheet.Title,
		"",
		"Link:     " + sheet.URL,
		"Twitter:  " + sheet.Twitter,
		"Facebook: " + sheet.Facebook,
		"",
		hintStyle.Render("esc close"),
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderButton(control mutation.Control) string {
	b := a.engine.Button(control)
	if b.Disabled {
		return busyButtonStyle.Render(busyLabel(b, a.spinner.View()))
	}
	return buttonStyle.Render(b.Label)
}

func (a *App) renderFeedArea(width int) string {
	var sections []string
	if p := a.renderPanel(width); p != "" {
		sections = append(sections, p, "")
	}
	switch {
	case a.engine.Posts().Len() > 0:
		sections = append(sections, a.feed.View())
	case a.engine.Pending(mutation.Key{Op: mutation.OpLoadFeed}):
		sections = append(sections, a.spinner.View()+" Loading posts...")
	default:
		sections = append(sections, hintStyle.Render("No posts yet. Press n to write one."))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(sections, "\n"))
}

func (a *App) renderPanel(width int) string {
	switch a.panel {
	case panelCompose:
		lines := []string{
			headStyle.Render("New Post"),
			a.composer.View(),
			fmt.Sprintf("Privacy: %s %s", a.composePrivacy.Icon(), a.composePrivacy.Label()),
			a.renderButton(mutation.ControlCreatePost),
			hintStyle.Render("ctrl+s post · ctrl+p privacy · esc cancel"),
		}
		return strings.Join(lines, "\n")
	case panelBio:
		left := mutation.MaxBioLength - utf8.RuneCountInString(a.bioEditor.Value())
		counter := hintStyle.Render(fmt.Sprintf("%d characters remaining", left))
		if left < 0 {
			counter = errorStyle.Render(fmt.Sprintf("%d characters over", -left))
		}
		lines := []string{
			headStyle.Render(a.engine.BioButtonLabel()),
			a.bioEditor.View(),
			counter,
			a.renderButton(mutation.ControlBio),
			hintStyle.Render("ctrl+s save · esc cancel"),
		}
		return strings.Join(lines, "\n")
	case panelConfirmDelete:
		post, _ := a.engine.Posts().Get(a.confirmID)
		return errorStyle.Render("Are you sure you want to delete this post?") + "\n" +
			hintStyle.Render(truncate(firstLine(post.Body), max(10, width))) + "\n" +
			hintStyle.Render("y delete · n cancel")
	}
	return ""
}

func (a *App) renderProfilePanel(width int) string {
	lines := []string{
		headStyle.Render("Profile"),
		lipgloss.NewStyle().Width(max(10, width)).Render(a.engine.Bio()),
		hintStyle.Render("b · " + a.engine.BioButtonLabel()),
		hintStyle.Render("p · Change Password"),
	}
	if n := a.engine.PendingCount(); n > 0 {
		lines = append(lines, "", fmt.Sprintf("%s %d request(s) in flight", a.spinner.View(), n))
	}
	return strings.Join(lines, "\n")
}

// renderToasts draws the toasts that are on screen. Entering toasts are not
// shown yet; exiting ones fade.
func (a *App) renderToasts() string {
	var rows []string
	for _, n := range a.engine.Notifications().Active() {
		style, ok := toastStyles[n.Severity]
		if !ok {
			style = toastStyles[notify.SeveritySuccess]
		}
		switch n.Phase {
		case notify.PhaseVisible:
			rows = append(rows, style.Render(n.Message))
		case notify.PhaseExiting:
			rows = append(rows, style.Faint(true).Render(n.Message))
		}
	}
	if len(rows) == 0 {
		return ""
	}
	width, _ := a.size()
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, lipgloss.JoinVertical(lipgloss.Right, rows...))
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := headStyle.Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}
