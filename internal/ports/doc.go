// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside
// world. They define what the application needs from external systems without
// specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [LivenessRepository]: Persists and loads the singleton liveness record
//   - [RecipientRepository]: Persists the notification recipient set
//   - [Gateway]: Both repositories behind one store handle
//   - [Deliverer]: Delivers one rendered message to one recipient
//   - [MetricsCollector]: Receives operational counters and gauges
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (SQLite, JSON file, Discord, Prometheus, zerolog).
package ports
