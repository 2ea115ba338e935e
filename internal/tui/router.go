package tui

import "sync"

// Router records where the dashboard asked to go. Workflows run inside
// commands, so GoTo may be called off the UI goroutine.
type Router struct {
	mu    sync.Mutex
	route string
}

// GoTo records route.
func (r *Router) GoTo(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.route = route
}

// Route returns the last requested route, or "".
func (r *Router) Route() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}
