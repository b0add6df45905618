package domain

import (
	"fmt"

	"chainsense/pkg/platform/sentinel"
)

// TokenType is the closed set of token variant discriminants. New variants are
// added here and in the token schema table; there is no open-ended subclassing.
type TokenType string

const (
	TokenTypeShipment    TokenType = "ST-01" // shipment root
	TokenTypeMilestone   TokenType = "MT-01" // derived milestone
	TokenTypeAccessorial TokenType = "AT-02" // accessorial charge
	TokenTypeInvoice     TokenType = "IT-01" // invoice
	TokenTypeQuote       TokenType = "QT-01" // quote
	TokenTypePayment     TokenType = "PT-01" // settlement payment
)

var validTokenTypes = map[TokenType]bool{
	TokenTypeShipment:    true,
	TokenTypeMilestone:   true,
	TokenTypeAccessorial: true,
	TokenTypeInvoice:     true,
	TokenTypeQuote:       true,
	TokenTypePayment:     true,
}

// ParseTokenType constructs a TokenType from external input.
func ParseTokenType(s string) (TokenType, error) {
	if s == "" {
		return "", fmt.Errorf("token type cannot be empty: %w", sentinel.ErrInvalidInput)
	}
	t := TokenType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown token type %q: %w", s, sentinel.ErrInvalidInput)
	}
	return t, nil
}

// IsValid reports whether the token type is one of the supported variants.
func (t TokenType) IsValid() bool {
	return validTokenTypes[t]
}

func (t TokenType) String() string {
	return string(t)
}
