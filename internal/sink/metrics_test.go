package sink

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutanix-tools/darksite-metering/internal/inventory"
)

func exampleSnapshot() *inventory.Snapshot {
	files := uint64(42)
	return &inventory.Snapshot{
		Clusters: []inventory.ClusterRecord{
			{UUID: "c1", Name: "prod", NodeCount: 3, CPUUsagePercent: 25, StorageCapacityBytes: 5000},
		},
		Hosts: []inventory.HostRecord{
			{UUID: "h1", Name: "node-1", ClusterName: "prod", PhysicalCores: 48, VMCount: 12},
			{UUID: "h2", Name: "node-2", ClusterName: "prod", PhysicalCores: 48},
		},
		VMs: []inventory.VMRecord{
			{UUID: "vm1", Name: "web-01", ClusterName: "prod", VCPUCount: 4, PowerOn: true},
			{UUID: "vm2", Name: "db-01", ClusterName: "prod", VCPUCount: 8, PowerOn: false},
		},
		Containers: []inventory.StorageContainerRecord{
			{UUID: "sc1", Name: "default", UsedBytes: 100, CapacityBytes: 500},
		},
		FileServers: []inventory.FileServerRecord{
			{UUID: "fs1", Name: "files-01", UsedBytes: 40, FileCount: &files},
		},
	}
}

func TestMetricsSinkPublish(t *testing.T) {
	sink := NewMetricsSink()
	require.NoError(t, sink.Publish(exampleSnapshot()))

	assert.Equal(t, 25.0, testutil.ToFloat64(clusterCPUUsage.WithLabelValues("prod", "c1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(clusterNodeCount.WithLabelValues("prod", "c1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(hostCount.WithLabelValues("prod")))
	assert.Equal(t, 2.0, testutil.ToFloat64(vmCount.WithLabelValues("prod")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vmPowerState.WithLabelValues("web-01", "vm1", "prod")))
	assert.Equal(t, 0.0, testutil.ToFloat64(vmPowerState.WithLabelValues("db-01", "vm2", "prod")))
	assert.Equal(t, 8.0, testutil.ToFloat64(vmCPUCount.WithLabelValues("db-01", "vm2")))
	assert.Equal(t, 100.0, testutil.ToFloat64(containerUsage.WithLabelValues("default", "sc1")))
	assert.Equal(t, 42.0, testutil.ToFloat64(fileServerFiles.WithLabelValues("files-01", "fs1")))
}

func TestMetricsSinkPublishIdempotent(t *testing.T) {
	sink := NewMetricsSink()
	snapshot := exampleSnapshot()

	require.NoError(t, sink.Publish(snapshot))
	require.NoError(t, sink.Publish(snapshot))

	// gauges stay at the snapshot value, publishing twice does not double
	assert.Equal(t, 2.0, testutil.ToFloat64(hostCount.WithLabelValues("prod")))
	assert.Equal(t, 4.0, testutil.ToFloat64(vmCPUCount.WithLabelValues("web-01", "vm1")))
}

type failingSink struct{ calls int }

func (f *failingSink) Name() string { return "failing" }
func (f *failingSink) Publish(*inventory.Snapshot) error {
	f.calls++
	return assert.AnError
}

type countingSink struct{ calls int }

func (c *countingSink) Name() string { return "counting" }
func (c *countingSink) Publish(*inventory.Snapshot) error {
	c.calls++
	return nil
}

func TestFanOutIsolatesFailures(t *testing.T) {
	failing := &failingSink{}
	counting := &countingSink{}

	FanOut(exampleSnapshot(), failing, counting)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, counting.calls)
}
