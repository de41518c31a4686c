package keys

import "github.com/gdamore/tcell/v2"

// Binding ties a key event to a handler within a page scope. Scope "" means
// the binding applies on every page.
type Binding struct {
	Scope       string
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches reports whether the event triggers this binding.
func (b *Binding) Matches(ev *tcell.EventKey) bool {
	if b.Key != tcell.KeyRune {
		return ev.Key() == b.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
}

// Registry holds keybindings in registration order, so dispatch is
// deterministic when a page binding shadows a global one.
type Registry struct {
	bindings []*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a binding. Page bindings added later shadow earlier ones in
// the same scope.
func (r *Registry) Add(b *Binding) {
	r.bindings = append(r.bindings, b)
}

// Hints returns visible binding descriptions applicable on a page.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, b := range r.bindings {
		if b.Visible && (b.Scope == "" || b.Scope == page) {
			hints = append(hints, b.Description)
		}
	}
	return hints
}

// HandleEvent dispatches a key event on the given page. Page-scoped bindings
// win over globals. Returns true if a handler ran.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, b := range r.bindings {
		if b.Scope == page && b.Matches(ev) {
			b.Handler()
			return true
		}
	}
	for _, b := range r.bindings {
		if b.Scope == "" && b.Matches(ev) {
			b.Handler()
			return true
		}
	}
	return false
}
