package domain

import (
	"fmt"

	"chainsense/pkg/platform/sentinel"
)

// MilestoneType is the discriminant carried in MT-01 token metadata. Downstream
// settlement keys partial payment releases off these values, so the set is
// closed and the strings are part of the external contract.
type MilestoneType string

const (
	MilestonePickupArrived     MilestoneType = "PICKUP_ARRIVED"
	MilestoneInTransit         MilestoneType = "IN_TRANSIT"
	MilestoneTerminalArrived   MilestoneType = "TERMINAL_ARRIVED"
	MilestoneTerminalDeparted  MilestoneType = "TERMINAL_DEPARTED"
	MilestoneCheckpointArrived MilestoneType = "CHECKPOINT_ARRIVED"
	MilestoneDelivered         MilestoneType = "DELIVERED"
)

var validMilestoneTypes = map[MilestoneType]bool{
	MilestonePickupArrived:     true,
	MilestoneInTransit:         true,
	MilestoneTerminalArrived:   true,
	MilestoneTerminalDeparted:  true,
	MilestoneCheckpointArrived: true,
	MilestoneDelivered:         true,
}

// ParseMilestoneType constructs a MilestoneType from external input.
func ParseMilestoneType(s string) (MilestoneType, error) {
	if s == "" {
		return "", fmt.Errorf("milestone type cannot be empty: %w", sentinel.ErrInvalidInput)
	}
	m := MilestoneType(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown milestone type %q: %w", s, sentinel.ErrInvalidInput)
	}
	return m, nil
}

func (m MilestoneType) IsValid() bool {
	return validMilestoneTypes[m]
}

func (m MilestoneType) String() string {
	return string(m)
}
