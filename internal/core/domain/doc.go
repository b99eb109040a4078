// Package domain contains the core business entities for BookBrain.
// These types are shared across services and adapters and carry no
// dependencies on infrastructure.
package domain
