package dispatcher

import (
	"context"
	"fmt"
	"sort"

	"toolgate/internal/auth"
	"toolgate/pkg/logging"
)

// ArgMetadata describes one argument a method accepts. It is surfaced to the
// transport layer so clients can validate input before calling.
type ArgMetadata struct {
	// Name is the argument name.
	Name string

	// Type is the JSON schema type ("string", "number", "boolean", ...).
	Type string

	// Required indicates whether the argument must be provided.
	Required bool

	// Description explains the argument to the caller.
	Description string

	// Default is the value used when the argument is omitted.
	Default interface{}
}

// Result is the outcome of a successful method invocation. Content entries
// are either strings or JSON-marshalable values; the transport layer decides
// the final wire encoding.
type Result struct {
	Content []interface{}
	IsError bool
}

// HandlerFunc is a gated method body. It only runs once the gate resolved a
// valid token; the token is injected alongside the original call arguments.
type HandlerFunc func(ctx context.Context, token auth.Token, args map[string]interface{}) (*Result, error)

// Method is one registered remote-callable method. The scope declaration is
// static and attached at registration time, never supplied per call: it
// expresses the minimum OAuth scope set the method requires and stays
// auditable in one place.
type Method struct {
	// Name is the unique method name clients call.
	Name string

	// Description explains the method to the caller.
	Description string

	// Provider names the OAuth provider whose credential the method needs.
	Provider string

	// Scopes is the method's declared minimum required scope set.
	Scopes []string

	// Args describes the method's accepted arguments.
	Args []ArgMetadata

	// Handler is the method body.
	Handler HandlerFunc
}

// Dispatcher resolves methods by name and routes every invocation through the
// authorization gate, injecting the resolved token into the handler. The
// registration table is built once at startup and read-only afterwards, so
// concurrent dispatch needs no locking.
type Dispatcher struct {
	gate    *auth.Gate
	methods map[string]Method
}

// New creates a dispatcher routing through gate.
func New(gate *auth.Gate) *Dispatcher {
	return &Dispatcher{
		gate:    gate,
		methods: make(map[string]Method),
	}
}

// Register adds a method to the registration table. Registering the same name
// twice is a programming error. A method without scopes is accepted here and
// rejected at call time, keeping the contract check observable.
func (d *Dispatcher) Register(m Method) error {
	if m.Name == "" {
		return fmt.Errorf("method name must not be empty")
	}
	if m.Handler == nil {
		return fmt.Errorf("method %s has no handler", m.Name)
	}
	if _, exists := d.methods[m.Name]; exists {
		return fmt.Errorf("method %s already registered", m.Name)
	}
	d.methods[m.Name] = m
	return nil
}

// RunMethod resolves name, routes the call through the authorization gate and
// invokes the method with the resolved token plus the original arguments.
//
// Failure modes, in evaluation order:
//   - *MethodNotFoundError when no method of that name is registered
//   - *ScopesNotFoundError when the method declares no scope set (checked
//     before any provider call)
//   - *auth.AuthorizationRequiredError carrying a fresh elicitation id when
//     no valid credential exists; the caller re-issues the call after the
//     authorization flow completes
//
// Handler results and errors are passed through unchanged.
func (d *Dispatcher) RunMethod(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	m, ok := d.methods[name]
	if !ok {
		return nil, &MethodNotFoundError{Name: name}
	}
	if len(m.Scopes) == 0 {
		return nil, &ScopesNotFoundError{Name: name}
	}

	decision, err := d.gate.Check(ctx, m.Provider, m.Scopes)
	if err != nil {
		return nil, err
	}
	if !decision.Authorized() {
		return nil, &auth.AuthorizationRequiredError{
			ElicitationID: decision.ElicitationID,
			Provider:      m.Provider,
		}
	}

	logging.Debug("Dispatcher", "Invoking method %s", name)
	return m.Handler(ctx, decision.Token, args)
}

// Methods returns the registered methods sorted by name, for transport-layer
// tool registration.
func (d *Dispatcher) Methods() []Method {
	methods := make([]Method, 0, len(d.methods))
	for _, m := range d.methods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	return methods
}
