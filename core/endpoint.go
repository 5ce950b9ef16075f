package core

import "fmt"

// Endpoint is a framework-agnostic description of one dashboard route.
// Adapters bind their own handler to it by OperationID.
type Endpoint struct {
	Path      string
	Method    string
	Protected bool // requires an authenticated session
	Metadata  EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
}

func (e Endpoint) Key() string {
	return fmt.Sprintf("%s:%s", e.Method, e.Path)
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// EndpointRegistry holds endpoints keyed by "METHOD:PATH" and rejects duplicates
type EndpointRegistry struct {
	endpoints map[string]*Endpoint
	order     []string
}

func NewEndpointRegistry(base []Endpoint) (*EndpointRegistry, error) {
	reg := &EndpointRegistry{endpoints: make(map[string]*Endpoint)}
	if err := reg.Register(base); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds a batch of endpoints. If any of them conflicts with an
// existing endpoint or with another one of the batch, nothing is registered.
func (r *EndpointRegistry) Register(endpoints []Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for i := range endpoints {
		key := endpoints[i].Key()
		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("%w: %s %s already registered", ErrEndpointConflict, endpoints[i].Method, endpoints[i].Path)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate %s %s in batch", ErrEndpointConflict, endpoints[i].Method, endpoints[i].Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		ep := endpoints[i]
		r.endpoints[ep.Key()] = &ep
		r.order = append(r.order, ep.Key())
	}
	return nil
}

// Endpoints returns every registered endpoint in registration order
func (r *EndpointRegistry) Endpoints() []*Endpoint {
	result := make([]*Endpoint, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.endpoints[key])
	}
	return result
}
