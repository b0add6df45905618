//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseTokenID verifies that parsing never panics on arbitrary input and
// that an accepted value always round-trips.
func FuzzParseTokenID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE tokens;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTokenID(input)
		if err != nil {
			return
		}

		roundTrip, err2 := ParseTokenID(id.String())
		if err2 != nil {
			t.Errorf("valid id failed round-trip: %v", err2)
		}
		if roundTrip != id {
			t.Error("round-trip changed id value")
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseOpaqueIDs keeps device and shipment parsing consistent: both are
// opaque strings with the same minimum-length rule.
func FuzzParseOpaqueIDs(f *testing.F) {
	f.Add("DEV-001")
	f.Add("")
	f.Add("ab")
	f.Add("   ")

	f.Fuzz(func(t *testing.T, input string) {
		_, errDevice := ParseDeviceID(input)
		_, errShipment := ParseShipmentID(input)

		if (errDevice == nil) != (errShipment == nil) {
			t.Error("inconsistent parsing across opaque id types")
		}
	})
}
