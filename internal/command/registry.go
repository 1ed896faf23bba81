// Package command routes user commands to handlers with per-command
// permission checks.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/linkdigest/linkdigest/internal/faults"
)

// Permission is the minimum privilege needed to run a command.
type Permission string

const (
	PermEveryone Permission = "everyone"
	PermAdmin    Permission = "admin"
)

// Request is one parsed command invocation.
type Request struct {
	Name    string
	Args    []string
	Sender  string
	GroupID string
	Admin   bool
}

// Handler executes a command and returns user-facing output.
type Handler func(ctx context.Context, req Request) (string, error)

// Descriptor declares a command. Aliases resolve to the same handler
// but never show up in List.
type Descriptor struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Permission  Permission
	Handler     Handler
}

// Registry holds registered commands. Registration happens at startup;
// dispatch is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Descriptor
	aliases  map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Descriptor),
		aliases:  make(map[string]string),
	}
}

// Register adds a command. Registering a duplicate name or alias is an
// error so wiring mistakes surface at startup.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" || d.Handler == nil {
		return fmt.Errorf("command needs a name and a handler")
	}
	if d.Permission == "" {
		d.Permission = PermEveryone
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(d.Name) {
		return fmt.Errorf("command %q already registered", d.Name)
	}
	for _, a := range d.Aliases {
		if r.taken(a) {
			return fmt.Errorf("alias %q already registered", a)
		}
	}
	r.commands[d.Name] = d
	for _, a := range d.Aliases {
		r.aliases[a] = d.Name
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	if _, ok := r.commands[name]; ok {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}

// List returns descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parse splits raw command text into a request. The leading slash, if
// present, is dropped.
func Parse(text, sender, groupID string, admin bool) (Request, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Request{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if name == "" {
		return Request{}, false
	}
	return Request{
		Name:    strings.ToLower(name),
		Args:    fields[1:],
		Sender:  sender,
		GroupID: groupID,
		Admin:   admin,
	}, true
}

// Dispatch routes a request to its handler, resolving aliases. Unknown
// names and failed permission checks come back as classified faults;
// the handler never runs in either case.
func (r *Registry) Dispatch(ctx context.Context, req Request) (string, error) {
	r.mu.RLock()
	name := req.Name
	if target, isAlias := r.aliases[name]; isAlias {
		name = target
	}
	d, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		return "", faults.New(faults.KindUnknownCommand, "dispatch", "",
			fmt.Errorf("no such command: %s", req.Name))
	}
	if d.Permission == PermAdmin && !req.Admin {
		return "", faults.New(faults.KindPermission, "dispatch", "",
			fmt.Errorf("command %s requires admin", req.Name))
	}
	return d.Handler(ctx, req)
}
