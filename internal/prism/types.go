package prism

import (
	"encoding/json"
	"strconv"
)

// ClusterReference is the embedded parent-cluster pointer carried by hosts
// and VMs. Either field may be empty.
type ClusterReference struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Entity is a v3 API entity envelope, shared by clusters, hosts and VMs.
type Entity struct {
	Metadata EntityMetadata `json:"metadata"`
	Spec     EntitySpec     `json:"spec"`
	Status   EntityStatus   `json:"status"`
}

type EntityMetadata struct {
	UUID string `json:"uuid"`
}

type EntitySpec struct {
	Name             string           `json:"name"`
	ClusterReference ClusterReference `json:"cluster_reference"`
	Resources        SpecResources    `json:"resources"`
}

type EntityStatus struct {
	Name             string           `json:"name"`
	ClusterReference ClusterReference `json:"cluster_reference"`
	Resources        StatusResources  `json:"resources"`
}

// SpecResources carries the configured (desired) resources of a v3 entity.
type SpecResources struct {
	NumSockets        uint   `json:"num_sockets"`
	NumVcpusPerSocket uint   `json:"num_vcpus_per_socket"`
	MemorySizeMib     uint64 `json:"memory_size_mib"`
	DiskList          []Disk `json:"disk_list"`
}

// Disk reports its size either in bytes or in MiB depending on the
// hypervisor version that created it.
type Disk struct {
	DiskSizeBytes uint64 `json:"disk_size_bytes"`
	DiskSizeMib   uint64 `json:"disk_size_mib"`
}

// StatusResources carries the observed resources of a v3 entity.
type StatusResources struct {
	PowerState    string     `json:"power_state"`
	NumCPUCores   uint       `json:"num_cpu_cores"`
	NumCPUSockets uint       `json:"num_cpu_sockets"`
	Hypervisor    Hypervisor `json:"hypervisor"`
}

type Hypervisor struct {
	CPUUsagePPM    int64 `json:"cpu_usage_ppm"`
	MemoryUsagePPM int64 `json:"memory_usage_ppm"`
	NumVMs         uint  `json:"num_vms"`
}

// Page is one page of a v3 list response.
type Page struct {
	Entities     []Entity
	TotalMatches int
}

type v3ListResponse struct {
	Metadata v3ListMetadata `json:"metadata"`
	Entities []Entity       `json:"entities"`
}

type v3ListMetadata struct {
	TotalMatches int `json:"total_matches"`
}

type v3ListRequest struct {
	Kind   string `json:"kind"`
	Length int    `json:"length"`
	Offset int    `json:"offset,omitempty"`
}

// ClusterV2 is a v2.0 API cluster. Stats maps hold stringified integers.
type ClusterV2 struct {
	UUID          string                 `json:"uuid"`
	ClusterUUID   string                 `json:"cluster_uuid"`
	Name          string                 `json:"name"`
	NumNodes      uint                   `json:"num_nodes"`
	NumCPUCores   uint                   `json:"num_cpu_cores"`
	TotalCPUCores uint                   `json:"total_cpu_cores"`
	Stats         map[string]json.Number `json:"stats"`
	UsageStats    map[string]json.Number `json:"usage_stats"`
}

// StorageContainerV2 is a v2.0 API storage container.
type StorageContainerV2 struct {
	StorageContainerUUID string                 `json:"storage_container_uuid"`
	Name                 string                 `json:"name"`
	UsageStats           map[string]json.Number `json:"usage_stats"`
}

type v2ListResponse[T any] struct {
	Entities []T `json:"entities"`
}

// FileServer is a Files v4 API file server identity.
type FileServer struct {
	ExtID string `json:"extId"`
	Name  string `json:"name"`
}

// FileServerStats is the Files v4 stats payload for one file server.
// The time-series fields are empty when the server reports no samples.
type FileServerStats struct {
	StorageCapacityBytes   uint64      `json:"storageCapacityBytes"`
	UsedCapacityBytes      uint64      `json:"usedCapacityBytes"`
	AvailableCapacityBytes uint64      `json:"availableCapacityBytes"`
	NumberOfFiles          []TimePoint `json:"numberOfFiles"`
	NumberOfConnections    []TimePoint `json:"numberOfConnections"`
}

type TimePoint struct {
	Timestamp string `json:"timestamp"`
	Value     uint64 `json:"value"`
}

type v4ListResponse[T any] struct {
	Data []T `json:"data"`
}

type v4ItemResponse[T any] struct {
	Data T `json:"data"`
}

// StatInt64 reads a stringified integer out of a v2 stats map, defaulting
// missing or malformed values to 0.
func StatInt64(stats map[string]json.Number, key string) int64 {
	n, ok := stats[key]
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
