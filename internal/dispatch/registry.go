package dispatch

import (
	"context"
	"sort"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// Handler serves one command.
type Handler interface {
	// Cmd returns the command name the handler answers to.
	Cmd() string

	// Handle runs the command. Failures are reported in the reply, never returned.
	Handle(ctx context.Context, req Request) domain.Reply
}

type handlerFunc struct {
	cmd string
	fn  func(ctx context.Context, req Request) domain.Reply
}

func (h handlerFunc) Cmd() string { return h.cmd }

func (h handlerFunc) Handle(ctx context.Context, req Request) domain.Reply {
	return h.fn(ctx, req)
}

// HandlerFunc adapts a function to a Handler for cmd.
func HandlerFunc(cmd string, fn func(ctx context.Context, req Request) domain.Reply) Handler {
	return handlerFunc{cmd: cmd, fn: fn}
}

// Registry holds the handlers keyed by command name.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates a registry with the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
	}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds a handler, replacing any with the same command.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Cmd()] = h
}

// Alias makes alias answer like target. Unknown targets are ignored.
func (r *Registry) Alias(alias, target string) {
	if h, ok := r.handlers[target]; ok {
		r.handlers[alias] = h
	}
}

// Get returns the handler for cmd.
func (r *Registry) Get(cmd string) (Handler, bool) {
	h, ok := r.handlers[cmd]
	return h, ok
}

// List returns all command names, sorted.
func (r *Registry) List() []string {
	cmds := make([]string, 0, len(r.handlers))
	for cmd := range r.handlers {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}
