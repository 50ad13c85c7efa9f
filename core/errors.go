/*
errors.go - Centralized error taxonomy

PURPOSE:
  All error categories the engine can surface, in one place. Domain packages
  wrap these sentinels with structured errors carrying enough context for the
  API layer to render an actionable message (offending entity, quantity,
  colliding field).

CATEGORIES:
  NotFound          unknown entity id
  InvalidTransition state machine precondition not met
  InsufficientStock inventory consume exceeds on-hand quantity
  Validation        malformed or out-of-range input
  Conflict          uniqueness violation (plate, active part name)

PROPAGATION:
  All five are caller/data errors: recovered at the request boundary,
  surfaced as structured responses, never retried inside the engine.
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a state machine precondition
	// is not met, e.g. approving an order that is not ready-for-delivery.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInsufficientStock is returned when a consume exceeds on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned on uniqueness violations.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when an actor may not mutate an entity it
	// does not own. The authorization mechanism itself is external; only
	// the assignee-match rule lives in the engine.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError names the entity and the rejected transition.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %q: cannot transition from %q to %q", e.Entity, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InsufficientStockError reports available vs requested quantity so the
// caller can render an actionable message.
type InsufficientStockError struct {
	PartID    PartID
	PartName  string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for part %q: available %d, requested %d",
		e.PartID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ForbiddenError names the actor and the entity it may not touch.
type ForbiddenError struct {
	ActorID UserID
	Entity  string
	ID      string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %q may not modify %s %q", e.ActorID, e.Entity, e.ID)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// ConflictError identifies which field collided.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error indicates a uniqueness violation
// or an illegal state transition.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition)
}

// IsValidation returns true if the error is due to malformed input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInsufficientStock returns true if the error is a stock shortfall.
func IsInsufficientStock(err error) bool { return errors.Is(err, ErrInsufficientStock) }

// IsClientError returns true if the error is due to the caller's input
// rather than an internal fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden)
}
