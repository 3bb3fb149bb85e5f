package sink

import (
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/inventory"
)

// Sink consumes one snapshot. Implementations must tolerate being called
// with the same snapshot more than once.
type Sink interface {
	Name() string
	Publish(snapshot *inventory.Snapshot) error
}

// FanOut hands the snapshot to every sink in order. A sink failure is
// logged and does not block the remaining sinks.
func FanOut(snapshot *inventory.Snapshot, sinks ...Sink) {
	for _, s := range sinks {
		if err := s.Publish(snapshot); err != nil {
			zap.S().Named("sink").Errorf("sink %s failed for pass %s: %v", s.Name(), snapshot.ID, err)
		}
	}
}
