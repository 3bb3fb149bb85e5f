package inventory

import (
	"time"

	"github.com/google/uuid"
)

// UnknownName is the terminal fallback for any entity whose name cannot be
// resolved from its spec, status or cluster reference.
const UnknownName = "unknown"

type HostRecord struct {
	UUID               string
	Name               string
	ClusterName        string
	PhysicalCores      uint
	CPUSockets         uint
	CPUUsagePercent    float64
	MemoryUsagePercent float64
	VMCount            uint
}

type VMRecord struct {
	UUID        string
	Name        string
	ClusterName string
	VCPUCount   uint
	MemoryBytes uint64
	DiskBytes   uint64
	PowerOn     bool
}

type ClusterRecord struct {
	UUID                 string
	Name                 string
	NodeCount            uint
	CPUUsagePercent      float64
	MemoryUsagePercent   float64
	StorageUsedBytes     uint64
	StorageCapacityBytes uint64
	StorageFreeBytes     uint64
	PhysicalCores        uint
}

type StorageContainerRecord struct {
	UUID          string
	Name          string
	UsedBytes     uint64
	CapacityBytes uint64
}

// FileServerRecord's FileCount and ConnectionCount are nil when the remote
// time-series payload carried no samples.
type FileServerRecord struct {
	UUID            string
	Name            string
	CapacityBytes   uint64
	UsedBytes       uint64
	AvailableBytes  uint64
	FileCount       *uint64
	ConnectionCount *uint64
}

// Snapshot is the immutable result of one collection pass. It is produced,
// handed to the sinks and discarded; the next pass supersedes it entirely.
type Snapshot struct {
	ID          uuid.UUID
	TakenAt     time.Time
	Clusters    []ClusterRecord
	Hosts       []HostRecord
	VMs         []VMRecord
	Containers  []StorageContainerRecord
	FileServers []FileServerRecord
}

// HostsPerCluster counts hosts keyed by resolved cluster name.
func (s *Snapshot) HostsPerCluster() map[string]uint {
	counts := map[string]uint{}
	for _, h := range s.Hosts {
		counts[h.ClusterName]++
	}
	return counts
}

// VMsPerCluster counts VMs keyed by resolved cluster name.
func (s *Snapshot) VMsPerCluster() map[string]uint {
	counts := map[string]uint{}
	for _, vm := range s.VMs {
		counts[vm.ClusterName]++
	}
	return counts
}
