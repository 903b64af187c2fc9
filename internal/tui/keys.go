package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists every binding the feed screen reacts to.
type keyMap struct {
	Like     key.Binding
	Comments key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Share    key.Binding
	Compose  key.Binding
	Bio      key.Binding
	Password key.Binding
	Reload   key.Binding
	Quit     key.Binding

	Submit  key.Binding
	Privacy key.Binding
	Next    key.Binding
	Close   key.Binding
	Confirm key.Binding
	Decline key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Like:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		Comments: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comments")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Share:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share")),
		Compose:  key.NewBinding(key.WithKeys("n", "ctrl+_"), key.WithHelp("n", "new post")),
		Bio:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bio")),
		Password: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "password")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Submit:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),
		Privacy: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "privacy")),
		Next:    key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Close:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		Decline: key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
	}
}

func (k keyMap) feedHelp() []key.Binding {
	return []key.Binding{k.Like, k.Comments, k.Edit, k.Delete, k.Share, k.Compose, k.Bio, k.Password, k.Reload, k.Quit}
}
