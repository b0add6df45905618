package token

import (
	"time"

	"chainsense/pkg/domain"
)

// FieldKind is the semantic type a metadata value must satisfy. Values arrive
// as decoded JSON, so the checks accept what encoding/json produces alongside
// native Go types.
type FieldKind string

const (
	KindString    FieldKind = "string"
	KindNumber    FieldKind = "number"
	KindTimestamp FieldKind = "timestamp"
	KindCurrency  FieldKind = "currency"
	KindList      FieldKind = "list"
)

type fieldSpec struct {
	key  string
	kind FieldKind
}

// schema is one variant's declarative contract: required metadata, required
// relation roles and the lifecycle chain. The factory checks it generically;
// variants never carry their own validation code.
type schema struct {
	metadata  []fieldSpec
	relations []string
	lifecycle map[State]State
}

// chain builds a linear lifecycle graph from an ordered state list.
func chain(states ...State) map[State]State {
	g := make(map[State]State, len(states))
	for i := 0; i+1 < len(states); i++ {
		g[states[i]] = states[i+1]
	}
	return g
}

// Relation role names used across the variant schemas.
const (
	RoleShipment  = "st01_id"
	RoleMilestone = "mt01_id"
	RoleQuote     = "qt01_id"
	RoleInvoice   = "it01_id"
)

var schemas = map[domain.TokenType]schema{
	domain.TokenTypeShipment: {
		metadata: []fieldSpec{
			{"origin", KindString},
			{"destination", KindString},
			{"carrier_id", KindString},
		},
		lifecycle: chain(StateCreated, StateDispatched, StateInTransit, StateArrived, StateDelivered, StateSettled),
	},
	domain.TokenTypeMilestone: {
		metadata: []fieldSpec{
			{"milestone_type", KindString},
			{"timestamp", KindTimestamp},
			{"location", KindList},
		},
		relations: []string{RoleShipment},
		lifecycle: chain(StateCreated, StateConfirmed),
	},
	domain.TokenTypeAccessorial: {
		metadata: []fieldSpec{
			{"accessorial_type", KindString},
			{"amount", KindNumber},
			{"timestamp", KindTimestamp},
			{"currency", KindCurrency},
		},
		relations: []string{RoleMilestone},
		lifecycle: chain(StateCreated, StateProofAttached, StateVerified),
	},
	domain.TokenTypeInvoice: {
		metadata: []fieldSpec{
			{"invoice_number", KindString},
			{"currency", KindCurrency},
			{"total", KindNumber},
			{"line_items", KindList},
			{"due_date", KindTimestamp},
		},
		relations: []string{RoleQuote},
		lifecycle: chain(StateCreated, StateIssued, StatePaid),
	},
	domain.TokenTypeQuote: {
		metadata: []fieldSpec{
			{"rate_amount", KindNumber},
			{"rate_currency", KindCurrency},
			{"equipment_type", KindString},
		},
		relations: []string{RoleShipment},
		lifecycle: chain(StateCreated, StateAccepted),
	},
	domain.TokenTypePayment: {
		metadata: []fieldSpec{
			{"payment_reference", KindString},
			{"currency", KindCurrency},
			{"amount", KindNumber},
		},
		relations: []string{RoleInvoice},
		lifecycle: chain(StateCreated, StateComplete),
	},
}

func schemaFor(typ domain.TokenType) (schema, bool) {
	s, ok := schemas[typ]
	return s, ok
}

// kindSatisfied checks one metadata value against its declared kind.
func kindSatisfied(kind FieldKind, v any) bool {
	switch kind {
	case KindString:
		s, ok := v.(string)
		return ok && s != ""
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case KindTimestamp:
		switch t := v.(type) {
		case time.Time:
			return !t.IsZero()
		case string:
			_, err := time.Parse(time.RFC3339, t)
			return err == nil
		}
		return false
	case KindCurrency:
		s, ok := v.(string)
		if !ok || len(s) != 3 {
			return false
		}
		for _, r := range s {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		return true
	case KindList:
		switch v.(type) {
		case []any, []float64, []string, []map[string]any:
			return true
		}
		return false
	}
	return false
}
