package sink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nutanix-tools/darksite-metering/internal/inventory"
)

const namespace = "nutanix"

var (
	clusterLabels    = []string{"cluster_name", "cluster_uuid"}
	hostLabels       = []string{"host_name", "host_uuid", "cluster_name"}
	vmLabels         = []string{"vm_name", "vm_uuid"}
	containerLabels  = []string{"container_name", "container_uuid"}
	fileServerLabels = []string{"file_server_name", "file_server_uuid"}
)

/**
* Metrics definition
**/
var (
	clusterCPUUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_cpu_usage_percent",
		Help: "Cluster CPU usage percentage",
	}, clusterLabels)
	clusterMemoryUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_memory_usage_percent",
		Help: "Cluster memory usage percentage",
	}, clusterLabels)
	clusterStorageUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_storage_usage_bytes",
		Help: "Cluster storage usage in bytes",
	}, clusterLabels)
	clusterStorageCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_storage_capacity_bytes",
		Help: "Cluster storage capacity in bytes",
	}, clusterLabels)
	clusterStorageFree = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_storage_free_bytes",
		Help: "Cluster storage free in bytes",
	}, clusterLabels)
	clusterNodeCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_node_count",
		Help: "Number of nodes in cluster",
	}, clusterLabels)
	clusterPhysicalCores = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_physical_cpu_cores",
		Help: "Total physical CPU cores in cluster",
	}, clusterLabels)

	hostCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "host_count",
		Help: "Total number of hosts per cluster",
	}, []string{"cluster_name"})
	hostCPUUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "host_cpu_usage_percent",
		Help: "Host CPU usage percentage",
	}, hostLabels)
	hostMemoryUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "host_memory_usage_percent",
		Help: "Host memory usage percentage",
	}, hostLabels)
	hostNumVMs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "host_num_vms",
		Help: "Number of VMs on host",
	}, hostLabels)
	hostPhysicalCores = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "host_physical_cpu_cores",
		Help: "Physical CPU cores on host",
	}, hostLabels)
	hostCPUSockets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "host_cpu_sockets",
		Help: "Number of CPU sockets on host",
	}, hostLabels)

	vmCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "vm_count",
		Help: "Total number of VMs per cluster",
	}, []string{"cluster_name"})
	vmPowerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "vm_power_state",
		Help: "VM power state (1=ON, 0=OFF)",
	}, []string{"vm_name", "vm_uuid", "cluster_name"})
	vmCPUCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "vm_cpu_count",
		Help: "Number of vCPUs assigned to VM",
	}, vmLabels)
	vmMemoryBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "vm_memory_bytes",
		Help: "Memory assigned to VM in bytes",
	}, vmLabels)
	vmDiskSizeBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "vm_disk_size_bytes",
		Help: "Total disk size of VM in bytes",
	}, vmLabels)

	containerUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "storage_container_usage_bytes",
		Help: "Storage container usage in bytes",
	}, containerLabels)
	containerCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "storage_container_capacity_bytes",
		Help: "Storage container capacity in bytes",
	}, containerLabels)

	fileServerCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "file_server_capacity_bytes",
		Help: "File server storage capacity in bytes",
	}, fileServerLabels)
	fileServerUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "file_server_used_bytes",
		Help: "File server storage used in bytes",
	}, fileServerLabels)
	fileServerAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "file_server_available_bytes",
		Help: "File server storage available in bytes",
	}, fileServerLabels)
	fileServerFiles = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "file_server_files_count",
		Help: "Number of files on file server",
	}, fileServerLabels)
	fileServerConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "file_server_connections",
		Help: "Number of connections to file server",
	}, fileServerLabels)
)

func init() {
	prometheus.MustRegister(
		clusterCPUUsage, clusterMemoryUsage, clusterStorageUsage,
		clusterStorageCapacity, clusterStorageFree, clusterNodeCount,
		clusterPhysicalCores,
		hostCount, hostCPUUsage, hostMemoryUsage, hostNumVMs,
		hostPhysicalCores, hostCPUSockets,
		vmCount, vmPowerState, vmCPUCount, vmMemoryBytes, vmDiskSizeBytes,
		containerUsage, containerCapacity,
		fileServerCapacity, fileServerUsed, fileServerAvailable,
		fileServerFiles, fileServerConnections,
	)
}

// MetricsSink publishes snapshots into the process-wide registry.
// Publishing is idempotent per snapshot (last-write-wins per label set).
// Gauges for entities absent from the latest snapshot keep their previous
// value until process restart; the scrape reflects the last pass that saw
// them. Known limitation, kept deliberately.
type MetricsSink struct{}

func NewMetricsSink() *MetricsSink { return &MetricsSink{} }

// Name implements Sink.
func (m *MetricsSink) Name() string { return "metrics" }

// Publish implements Sink.
func (m *MetricsSink) Publish(snapshot *inventory.Snapshot) error {
	for _, c := range snapshot.Clusters {
		clusterCPUUsage.WithLabelValues(c.Name, c.UUID).Set(c.CPUUsagePercent)
		clusterMemoryUsage.WithLabelValues(c.Name, c.UUID).Set(c.MemoryUsagePercent)
		clusterStorageUsage.WithLabelValues(c.Name, c.UUID).Set(float64(c.StorageUsedBytes))
		clusterStorageCapacity.WithLabelValues(c.Name, c.UUID).Set(float64(c.StorageCapacityBytes))
		clusterStorageFree.WithLabelValues(c.Name, c.UUID).Set(float64(c.StorageFreeBytes))
		clusterNodeCount.WithLabelValues(c.Name, c.UUID).Set(float64(c.NodeCount))
		clusterPhysicalCores.WithLabelValues(c.Name, c.UUID).Set(float64(c.PhysicalCores))
	}

	for _, h := range snapshot.Hosts {
		hostCPUUsage.WithLabelValues(h.Name, h.UUID, h.ClusterName).Set(h.CPUUsagePercent)
		hostMemoryUsage.WithLabelValues(h.Name, h.UUID, h.ClusterName).Set(h.MemoryUsagePercent)
		hostNumVMs.WithLabelValues(h.Name, h.UUID, h.ClusterName).Set(float64(h.VMCount))
		hostPhysicalCores.WithLabelValues(h.Name, h.UUID, h.ClusterName).Set(float64(h.PhysicalCores))
		hostCPUSockets.WithLabelValues(h.Name, h.UUID, h.ClusterName).Set(float64(h.CPUSockets))
	}
	for name, count := range snapshot.HostsPerCluster() {
		hostCount.WithLabelValues(name).Set(float64(count))
	}

	for _, vm := range snapshot.VMs {
		power := 0.0
		if vm.PowerOn {
			power = 1.0
		}
		vmPowerState.WithLabelValues(vm.Name, vm.UUID, vm.ClusterName).Set(power)
		vmCPUCount.WithLabelValues(vm.Name, vm.UUID).Set(float64(vm.VCPUCount))
		vmMemoryBytes.WithLabelValues(vm.Name, vm.UUID).Set(float64(vm.MemoryBytes))
		vmDiskSizeBytes.WithLabelValues(vm.Name, vm.UUID).Set(float64(vm.DiskBytes))
	}
	for name, count := range snapshot.VMsPerCluster() {
		vmCount.WithLabelValues(name).Set(float64(count))
	}

	for _, c := range snapshot.Containers {
		containerUsage.WithLabelValues(c.Name, c.UUID).Set(float64(c.UsedBytes))
		containerCapacity.WithLabelValues(c.Name, c.UUID).Set(float64(c.CapacityBytes))
	}

	for _, fs := range snapshot.FileServers {
		fileServerCapacity.WithLabelValues(fs.Name, fs.UUID).Set(float64(fs.CapacityBytes))
		fileServerUsed.WithLabelValues(fs.Name, fs.UUID).Set(float64(fs.UsedBytes))
		fileServerAvailable.WithLabelValues(fs.Name, fs.UUID).Set(float64(fs.AvailableBytes))
		if fs.FileCount != nil {
			fileServerFiles.WithLabelValues(fs.Name, fs.UUID).Set(float64(*fs.FileCount))
		}
		if fs.ConnectionCount != nil {
			fileServerConnections.WithLabelValues(fs.Name, fs.UUID).Set(float64(*fs.ConnectionCount))
		}
	}

	return nil
}
