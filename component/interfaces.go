package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Healthy reports whether the status is StatusHealthy.
func (h Health) Healthy() bool { return h.Status == StatusHealthy }

// Component represents a lifecycle-managed infrastructure component.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for the run summary.
type Description struct {
	// Name is the human-readable display name (e.g., "Storage").
	// If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "storage", "telemetry".
	Type string
	// Details is a one-liner shown in the run summary,
	// e.g. "provider=s3 destination=s3://photos/2024".
	Details string
}

// Describable is optionally implemented by Components to self-report
// what they are and how they are configured.
type Describable interface {
	Describe() Description
}
