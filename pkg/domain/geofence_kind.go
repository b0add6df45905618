package domain

import (
	"fmt"

	"chainsense/pkg/platform/sentinel"
)

// GeofenceKind classifies a registered geographic boundary. The kind drives
// milestone derivation: exiting a shipper pickup fence means something
// different from exiting a border crossing.
type GeofenceKind string

const (
	GeofenceShipperPickup GeofenceKind = "SHIPPER_PICKUP"
	GeofenceConsignee     GeofenceKind = "CONSIGNEE"
	GeofenceTerminal      GeofenceKind = "TERMINAL"
	GeofencePort          GeofenceKind = "PORT"
	GeofenceBorder        GeofenceKind = "BORDER"
	GeofenceCustom        GeofenceKind = "CUSTOM"
)

var validGeofenceKinds = map[GeofenceKind]bool{
	GeofenceShipperPickup: true,
	GeofenceConsignee:     true,
	GeofenceTerminal:      true,
	GeofencePort:          true,
	GeofenceBorder:        true,
	GeofenceCustom:        true,
}

// ParseGeofenceKind constructs a GeofenceKind from external input, typically
// when loading the geofence catalogue.
func ParseGeofenceKind(s string) (GeofenceKind, error) {
	if s == "" {
		return "", fmt.Errorf("geofence kind cannot be empty: %w", sentinel.ErrInvalidInput)
	}
	k := GeofenceKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown geofence kind %q: %w", s, sentinel.ErrInvalidInput)
	}
	return k, nil
}

func (k GeofenceKind) IsValid() bool {
	return validGeofenceKinds[k]
}

func (k GeofenceKind) String() string {
	return string(k)
}
