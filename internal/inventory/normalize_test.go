package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nutanix-tools/darksite-metering/internal/prism"
)

func TestTotalDiskBytes(t *testing.T) {
	tests := []struct {
		name  string
		disks []prism.Disk
		want  uint64
	}{
		{
			name:  "no disks",
			disks: nil,
			want:  0,
		},
		{
			name:  "bytes preferred over mib",
			disks: []prism.Disk{{DiskSizeBytes: 1000, DiskSizeMib: 5}},
			want:  1000,
		},
		{
			name:  "mib fallback",
			disks: []prism.Disk{{DiskSizeMib: 2}},
			want:  2 * 1024 * 1024,
		},
		{
			name: "mixed disks sum per-disk",
			disks: []prism.Disk{
				{DiskSizeBytes: 1 << 30},
				{DiskSizeMib: 1024},
			},
			want: (1 << 30) + 1024*1024*1024,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, TotalDiskBytes(test.disks))
		})
	}
}

func TestPercentFromPPM(t *testing.T) {
	assert.Equal(t, 0.0, PercentFromPPM(0))
	assert.Equal(t, 100.0, PercentFromPPM(1000000))
	assert.Equal(t, 45.0, PercentFromPPM(450000))
	// monotonic
	assert.Less(t, PercentFromPPM(100), PercentFromPPM(200))
}

func TestNormalizeVM(t *testing.T) {
	index := ClusterIndex{"c1": "prod"}

	tests := []struct {
		name   string
		entity prism.Entity
		want   VMRecord
	}{
		{
			name: "full spec",
			entity: prism.Entity{
				Metadata: prism.EntityMetadata{UUID: "vm1"},
				Spec: prism.EntitySpec{
					Name:             "web-01",
					ClusterReference: prism.ClusterReference{UUID: "c1"},
					Resources: prism.SpecResources{
						NumSockets:        2,
						NumVcpusPerSocket: 4,
						MemorySizeMib:     8192,
						DiskList:          []prism.Disk{{DiskSizeBytes: 100}},
					},
				},
				Status: prism.EntityStatus{
					Resources: prism.StatusResources{PowerState: "ON"},
				},
			},
			want: VMRecord{
				UUID:        "vm1",
				Name:        "web-01",
				ClusterName: "prod",
				VCPUCount:   8,
				MemoryBytes: 8192 * 1024 * 1024,
				DiskBytes:   100,
				PowerOn:     true,
			},
		},
		{
			name: "sockets and vcpus default to one",
			entity: prism.Entity{
				Metadata: prism.EntityMetadata{UUID: "vm2"},
				Status: prism.EntityStatus{
					Name:      "db-01",
					Resources: prism.StatusResources{PowerState: "OFF"},
				},
			},
			want: VMRecord{
				UUID:        "vm2",
				Name:        "db-01",
				ClusterName: UnknownName,
				VCPUCount:   1,
				PowerOn:     false,
			},
		},
		{
			name:   "nameless entity",
			entity: prism.Entity{Metadata: prism.EntityMetadata{UUID: "vm3"}},
			want: VMRecord{
				UUID:        "vm3",
				Name:        UnknownName,
				ClusterName: UnknownName,
				VCPUCount:   1,
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, NormalizeVM(test.entity, index))
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	index := ClusterIndex{"c1": "prod"}

	host := prism.Entity{
		Metadata: prism.EntityMetadata{UUID: "h1"},
		Status: prism.EntityStatus{
			Name:             "node-1",
			ClusterReference: prism.ClusterReference{UUID: "c1"},
			Resources: prism.StatusResources{
				NumCPUCores:   48,
				NumCPUSockets: 2,
				Hypervisor: prism.Hypervisor{
					CPUUsagePPM:    250000,
					MemoryUsagePPM: 800000,
					NumVMs:         12,
				},
			},
		},
	}

	rec := NormalizeHost(host, index)
	assert.Equal(t, "node-1", rec.Name)
	assert.Equal(t, "prod", rec.ClusterName)
	assert.Equal(t, uint(48), rec.PhysicalCores)
	assert.Equal(t, uint(2), rec.CPUSockets)
	assert.Equal(t, 25.0, rec.CPUUsagePercent)
	assert.Equal(t, 80.0, rec.MemoryUsagePercent)
	assert.Equal(t, uint(12), rec.VMCount)
}

func TestNormalizeCluster(t *testing.T) {
	cluster := prism.ClusterV2{
		ClusterUUID: "c9",
		Name:        "edge",
		NumNodes:    3,
		TotalCPUCores: 96,
		Stats: map[string]json.Number{
			"hypervisor_cpu_usage_ppm":    "120000",
			"hypervisor_memory_usage_ppm": "garbage",
		},
		UsageStats: map[string]json.Number{
			"storage.usage_bytes":    "1000",
			"storage.capacity_bytes": "5000",
		},
	}

	rec := NormalizeCluster(cluster)
	assert.Equal(t, "c9", rec.UUID)
	assert.Equal(t, "edge", rec.Name)
	assert.Equal(t, uint(3), rec.NodeCount)
	assert.Equal(t, uint(96), rec.PhysicalCores)
	assert.Equal(t, 12.0, rec.CPUUsagePercent)
	assert.Equal(t, 0.0, rec.MemoryUsagePercent)
	assert.Equal(t, uint64(1000), rec.StorageUsedBytes)
	assert.Equal(t, uint64(5000), rec.StorageCapacityBytes)
	assert.Equal(t, uint64(0), rec.StorageFreeBytes)
}

func TestNormalizeFileServer(t *testing.T) {
	fs := prism.FileServer{ExtID: "fs1", Name: "files-01"}

	t.Run("nil stats keeps identity", func(t *testing.T) {
		rec := NormalizeFileServer(fs, nil)
		assert.Equal(t, "fs1", rec.UUID)
		assert.Equal(t, "files-01", rec.Name)
		assert.Equal(t, uint64(0), rec.UsedBytes)
		assert.Nil(t, rec.FileCount)
		assert.Nil(t, rec.ConnectionCount)
	})

	t.Run("latest time series sample wins", func(t *testing.T) {
		stats := &prism.FileServerStats{
			StorageCapacityBytes:   100,
			UsedCapacityBytes:      40,
			AvailableCapacityBytes: 60,
			NumberOfFiles: []prism.TimePoint{
				{Value: 10}, {Value: 25},
			},
		}
		rec := NormalizeFileServer(fs, stats)
		assert.Equal(t, uint64(40), rec.UsedBytes)
		if assert.NotNil(t, rec.FileCount) {
			assert.Equal(t, uint64(25), *rec.FileCount)
		}
		assert.Nil(t, rec.ConnectionCount)
	})
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.2346, Round4(1.23456))
	assert.Equal(t, 1.23, Round2(1.2345))
	assert.Equal(t, 0.5, BytesToTiB(1<<39))
	assert.Equal(t, 2.0, BytesToGB(2<<30))
}
