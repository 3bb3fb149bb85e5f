package inventory

import (
	"github.com/nutanix-tools/darksite-metering/internal/prism"
)

// ClusterIndex maps cluster uuid to cluster name for one collection pass.
// It is built from the cluster listing before hosts and VMs are listed and
// is read-only afterwards.
type ClusterIndex map[string]string

// NewClusterIndex builds the index from v3 cluster summaries.
func NewClusterIndex(summaries []prism.Entity) ClusterIndex {
	ix := ClusterIndex{}
	for _, e := range summaries {
		ix[e.Metadata.UUID] = entityName(e)
	}
	return ix
}

// Add records a uuid-to-name mapping unless the uuid is already known.
func (ix ClusterIndex) Add(uuid, name string) {
	if uuid == "" {
		return
	}
	if _, ok := ix[uuid]; !ok {
		ix[uuid] = name
	}
}

// Resolve returns the cluster name for a child entity's embedded reference:
// the indexed name when the uuid is known, the embedded name otherwise,
// "unknown" when both are absent.
func (ix ClusterIndex) Resolve(ref prism.ClusterReference) string {
	if ref.UUID != "" {
		if name, ok := ix[ref.UUID]; ok {
			return name
		}
	}
	if ref.Name != "" {
		return ref.Name
	}
	return UnknownName
}
