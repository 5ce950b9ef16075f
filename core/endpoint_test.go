package core

import (
	"errors"
	"testing"
)

func testEndpoints() []Endpoint {
	return []Endpoint{
		{Path: "/session", Method: "GET", Metadata: EndpointMetadata{OperationID: "getSession"}},
		{Path: "/login", Method: "POST", Metadata: EndpointMetadata{OperationID: "login"}},
	}
}

// Requirement: endpoints are returned in registration order.
func TestEndpointRegistryKeepsOrder(t *testing.T) {
	reg, err := NewEndpointRegistry(testEndpoints())
	if err != nil {
		t.Fatalf("NewEndpointRegistry() error = %v", err)
	}

	got := reg.Endpoints()
	if len(got) != 2 {
		t.Fatalf("Expected 2 endpoints, got %d", len(got))
	}
	if got[0].Metadata.OperationID != "getSession" || got[1].Metadata.OperationID != "login" {
		t.Errorf("unexpected order: %s, %s", got[0].Metadata.OperationID, got[1].Metadata.OperationID)
	}
}

// Requirement: a conflicting batch registers nothing.
func TestEndpointRegistryConflicts(t *testing.T) {
	tests := []struct {
		name  string
		batch []Endpoint
	}{
		{
			name:  "conflict with existing endpoint",
			batch: []Endpoint{{Path: "/new", Method: "GET"}, {Path: "/session", Method: "GET"}},
		},
		{
			name:  "duplicate inside the batch",
			batch: []Endpoint{{Path: "/dup", Method: "POST"}, {Path: "/dup", Method: "POST"}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			reg, _ := NewEndpointRegistry(testEndpoints())

			// Act
			err := reg.Register(test.batch)

			// Assert
			if !errors.Is(err, ErrEndpointConflict) {
				t.Fatalf("Register() error = %v, want ErrEndpointConflict", err)
			}
			if len(reg.Endpoints()) != 2 {
				t.Errorf("Expected registry unchanged, got %d endpoints", len(reg.Endpoints()))
			}
		})
	}
}

func TestEndpointRegistrySamePathDifferentMethod(t *testing.T) {
	reg, _ := NewEndpointRegistry(testEndpoints())

	if err := reg.Register([]Endpoint{{Path: "/session", Method: "DELETE"}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(reg.Endpoints()) != 3 {
		t.Errorf("Expected 3 endpoints, got %d", len(reg.Endpoints()))
	}
}
