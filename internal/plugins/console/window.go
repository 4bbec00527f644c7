package console

import "sync"

// Window is the presentation state of the console. Closing only hides it;
// the rows live on in the Log.
type Window struct {
	mu          sync.RWMutex
	visible     bool
	presented   int
	subscribers map[int]func()
	nextSubID   int
}

// NewWindow creates a visible window.
func NewWindow() *Window {
	return &Window{
		visible:     true,
		subscribers: make(map[int]func()),
	}
}

// Present shows the window and brings it to the front.
func (w *Window) Present() {
	w.mu.Lock()
	w.visible = true
	w.presented++
	subs := make([]func(), 0, len(w.subscribers))
	for _, fn := range w.subscribers {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Close hides the window.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
}

// Visible reports whether the window is shown.
func (w *Window) Visible() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.visible
}

// Presented returns how many times the window was brought to the front.
func (w *Window) Presented() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.presented
}

// OnPresent registers fn to be called every time the window is presented.
func (w *Window) OnPresent(fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSubID
	w.nextSubID++
	w.subscribers[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subscribers, id)
	}
}
