package domain

import (
	"fmt"

	"chainsense/pkg/platform/sentinel"
)

// TransportMode is how the shipment physically moves. The consistency engine
// keys its plausible-speed ceiling off the mode.
type TransportMode string

const (
	TransportRoad TransportMode = "ROAD"
	TransportRail TransportMode = "RAIL"
	TransportSea  TransportMode = "SEA"
	TransportAir  TransportMode = "AIR"
)

var validTransportModes = map[TransportMode]bool{
	TransportRoad: true,
	TransportRail: true,
	TransportSea:  true,
	TransportAir:  true,
}

// ParseTransportMode constructs a TransportMode from external input.
func ParseTransportMode(s string) (TransportMode, error) {
	if s == "" {
		return "", fmt.Errorf("transport mode cannot be empty: %w", sentinel.ErrInvalidInput)
	}
	m := TransportMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown transport mode %q: %w", s, sentinel.ErrInvalidInput)
	}
	return m, nil
}

func (m TransportMode) IsValid() bool {
	return validTransportModes[m]
}

func (m TransportMode) String() string {
	return string(m)
}
