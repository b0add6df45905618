package token

import (
	"fmt"

	"chainsense/pkg/domain"
)

// TokenValidationError reports malformed creation input: an unknown type
// discriminant or a missing/mistyped required metadata field. Not retryable;
// the producing logic is wrong.
type TokenValidationError struct {
	TokenType domain.TokenType
	Field     string
	Reason    string
}

func (e *TokenValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("token validation failed for %s: %s", e.TokenType, e.Reason)
	}
	return fmt.Sprintf("token validation failed for %s: field %q: %s", e.TokenType, e.Field, e.Reason)
}

// RelationValidationError reports a missing required relation role or a
// reference to a token id absent from the registry. Distinct from
// TokenValidationError because the referenced token may simply not exist yet;
// callers may retry after the ancestor arrives.
type RelationValidationError struct {
	TokenType domain.TokenType
	Role      string
	Ref       domain.TokenID
	Reason    string
}

func (e *RelationValidationError) Error() string {
	if e.Ref.IsNil() {
		return fmt.Sprintf("relation validation failed for %s: role %q: %s", e.TokenType, e.Role, e.Reason)
	}
	return fmt.Sprintf("relation validation failed for %s: role %q -> %s: %s", e.TokenType, e.Role, e.Ref, e.Reason)
}

// InvalidStateTransitionError reports a lifecycle move the token's graph does
// not allow. Not retryable.
type InvalidStateTransitionError struct {
	TokenType domain.TokenType
	From      State
	To        State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for %s: %s -> %s", e.TokenType, e.From, e.To)
}
