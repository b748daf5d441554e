// Package domain contains the core domain entities and value objects for powerwatch.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, SQL, chat transports,
// logging) and contains only pure business logic.
//
// # Entities
//
//   - [LivenessRecord]: The single persisted record describing whether the
//     monitored signal is present and when it last changed
//   - [Event]: A confirmed transition (signal lost / signal restored)
//   - [RecipientID]: An opaque notification recipient identifier
//
// # Design Principles
//
// Domain entities are:
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
