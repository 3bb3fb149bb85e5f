package inventory

import (
	"math"

	"github.com/nutanix-tools/darksite-metering/internal/prism"
)

const (
	bytesPerMiB = 1024 * 1024
	bytesPerGiB = 1024 * 1024 * 1024
	bytesPerTiB = 1024 * 1024 * 1024 * 1024
)

// PercentFromPPM converts a parts-per-million reading to a percentage.
func PercentFromPPM(ppm int64) float64 {
	return float64(ppm) / 10000
}

// BytesToTiB converts bytes to TiB, unrounded.
func BytesToTiB(b uint64) float64 {
	return float64(b) / bytesPerTiB
}

// BytesToGB converts bytes to binary gigabytes, unrounded.
func BytesToGB(b uint64) float64 {
	return float64(b) / bytesPerGiB
}

// Round4 rounds to 4 decimals, the billing precision for TiB quantities.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Round2 rounds to 2 decimals, the billing precision for GB quantities.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TotalDiskBytes sums a VM's disks. Each disk contributes disk_size_bytes
// when present and nonzero, otherwise disk_size_mib converted to bytes.
func TotalDiskBytes(disks []prism.Disk) uint64 {
	var total uint64
	for _, d := range disks {
		if d.DiskSizeBytes != 0 {
			total += d.DiskSizeBytes
			continue
		}
		total += d.DiskSizeMib * bytesPerMiB
	}
	return total
}

// entityName resolves a v3 entity's display name: spec name, then status
// name, then "unknown".
func entityName(e prism.Entity) string {
	if e.Spec.Name != "" {
		return e.Spec.Name
	}
	if e.Status.Name != "" {
		return e.Status.Name
	}
	return UnknownName
}

// NormalizeHost maps a v3 host entity to a HostRecord. The cluster reference
// of a host lives in status, not spec.
func NormalizeHost(e prism.Entity, clusters ClusterIndex) HostRecord {
	res := e.Status.Resources
	return HostRecord{
		UUID:               e.Metadata.UUID,
		Name:               entityName(e),
		ClusterName:        clusters.Resolve(e.Status.ClusterReference),
		PhysicalCores:      res.NumCPUCores,
		CPUSockets:         res.NumCPUSockets,
		CPUUsagePercent:    PercentFromPPM(res.Hypervisor.CPUUsagePPM),
		MemoryUsagePercent: PercentFromPPM(res.Hypervisor.MemoryUsagePPM),
		VMCount:            res.Hypervisor.NumVMs,
	}
}

// NormalizeVM maps a v3 VM entity to a VMRecord. vCPU count is
// sockets x vcpus-per-socket, each defaulting to 1 when absent.
func NormalizeVM(e prism.Entity, clusters ClusterIndex) VMRecord {
	spec := e.Spec.Resources

	sockets := spec.NumSockets
	if sockets == 0 {
		sockets = 1
	}
	vcpusPerSocket := spec.NumVcpusPerSocket
	if vcpusPerSocket == 0 {
		vcpusPerSocket = 1
	}

	return VMRecord{
		UUID:        e.Metadata.UUID,
		Name:        entityName(e),
		ClusterName: clusters.Resolve(e.Spec.ClusterReference),
		VCPUCount:   sockets * vcpusPerSocket,
		MemoryBytes: spec.MemorySizeMib * bytesPerMiB,
		DiskBytes:   TotalDiskBytes(spec.DiskList),
		PowerOn:     e.Status.Resources.PowerState == "ON",
	}
}

// NormalizeCluster maps a v2.0 cluster to a ClusterRecord.
func NormalizeCluster(c prism.ClusterV2) ClusterRecord {
	uuid := c.UUID
	if uuid == "" {
		uuid = c.ClusterUUID
	}
	name := c.Name
	if name == "" {
		name = UnknownName
	}

	cores := c.NumCPUCores
	if cores == 0 {
		cores = c.TotalCPUCores
	}

	return ClusterRecord{
		UUID:                 uuid,
		Name:                 name,
		NodeCount:            c.NumNodes,
		CPUUsagePercent:      PercentFromPPM(prism.StatInt64(c.Stats, "hypervisor_cpu_usage_ppm")),
		MemoryUsagePercent:   PercentFromPPM(prism.StatInt64(c.Stats, "hypervisor_memory_usage_ppm")),
		StorageUsedBytes:     uint64(prism.StatInt64(c.UsageStats, "storage.usage_bytes")),
		StorageCapacityBytes: uint64(prism.StatInt64(c.UsageStats, "storage.capacity_bytes")),
		StorageFreeBytes:     uint64(prism.StatInt64(c.UsageStats, "storage.free_bytes")),
		PhysicalCores:        cores,
	}
}

// NormalizeContainer maps a v2.0 storage container to a record.
func NormalizeContainer(c prism.StorageContainerV2) StorageContainerRecord {
	name := c.Name
	if name == "" {
		name = UnknownName
	}
	return StorageContainerRecord{
		UUID:          c.StorageContainerUUID,
		Name:          name,
		UsedBytes:     uint64(prism.StatInt64(c.UsageStats, "storage.user_unreserved_usage_bytes")),
		CapacityBytes: uint64(prism.StatInt64(c.UsageStats, "storage.user_capacity_bytes")),
	}
}

// NormalizeFileServer maps a Files v4 identity plus its stats payload.
// stats may be nil when the stats call failed; the server is still kept
// with zero-valued capacity fields.
func NormalizeFileServer(fs prism.FileServer, stats *prism.FileServerStats) FileServerRecord {
	name := fs.Name
	if name == "" {
		name = UnknownName
	}
	rec := FileServerRecord{
		UUID: fs.ExtID,
		Name: name,
	}
	if stats == nil {
		return rec
	}

	rec.CapacityBytes = stats.StorageCapacityBytes
	rec.UsedBytes = stats.UsedCapacityBytes
	rec.AvailableBytes = stats.AvailableCapacityBytes

	// Time-series fields: take the latest sample, absent when empty.
	if n := len(stats.NumberOfFiles); n > 0 {
		v := stats.NumberOfFiles[n-1].Value
		rec.FileCount = &v
	}
	if n := len(stats.NumberOfConnections); n > 0 {
		v := stats.NumberOfConnections[n-1].Value
		rec.ConnectionCount = &v
	}
	return rec
}
