package milestone

import (
	"sync"

	"chainsense/pkg/domain"
)

// Context carries per-shipment milestone history across samples. The builder
// consults it so a shipment reports each milestone once, no matter how many
// samples re-affirm the same condition. Callers own the context lifetime,
// typically one per active shipment.
type Context struct {
	shipmentID domain.ShipmentID

	mu    sync.Mutex
	fired map[string]bool
}

// NewContext constructs an empty milestone context for a shipment.
func NewContext(shipmentID domain.ShipmentID) *Context {
	return &Context{
		shipmentID: shipmentID,
		fired:      make(map[string]bool),
	}
}

// ShipmentID returns the shipment this context tracks.
func (c *Context) ShipmentID() domain.ShipmentID {
	return c.shipmentID
}

// Fired reports whether a milestone type has already been produced for this
// shipment, regardless of which geofence produced it.
func (c *Context) Fired(typ domain.MilestoneType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.fired {
		if milestoneTypeOf(key) == typ {
			return true
		}
	}
	return false
}

// markIfNew records the key and reports whether it was newly fired. Geofence
// driven milestones key on (type, geofence) so a multi-stop shipment can
// arrive at more than one terminal; movement-derived ones key on type alone.
func (c *Context) markIfNew(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired[key] {
		return false
	}
	c.fired[key] = true
	return true
}
