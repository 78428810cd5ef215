// Package component defines lifecycle-managed infrastructure for photoflow
// runs: the destination storage and the telemetry providers.
//
// Components are registered with a Registry, started in registration order
// before a run begins and stopped in reverse order once it ends. A component
// whose Health is unhealthy after start aborts the run as a systemic fault.
//
// # Interfaces
//
//   - Component: Core lifecycle interface (Start/Stop/Health)
//   - Describable: Run summary descriptions
package component
