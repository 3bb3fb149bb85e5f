package sink

import (
	"encoding/csv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutanix-tools/darksite-metering/internal/inventory"
)

var billingWindow = struct {
	start, end time.Time
}{
	start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	end:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
}

func TestBuildRowsSequencing(t *testing.T) {
	snapshot := &inventory.Snapshot{
		Hosts: []inventory.HostRecord{
			{UUID: "h1", Name: "node-1", PhysicalCores: 4},
			{UUID: "h2", Name: "node-2", PhysicalCores: 0},
		},
		VMs: []inventory.VMRecord{
			{UUID: "vm1", Name: "web-01", VCPUCount: 2, MemoryBytes: 4 << 30, DiskBytes: 100 << 30},
		},
		FileServers: []inventory.FileServerRecord{
			{UUID: "fs1", Name: "files-01", UsedBytes: 0},
		},
	}

	w := NewBillingWriter(afero.NewMemMapFs(), BillingConfig{
		AccountID:           "ACME",
		EmitZeroFileServers: false,
	})
	rows := w.BuildRows(snapshot, billingWindow.start, billingWindow.end)

	// the zero-core host and the zero-usage file server are skipped
	require.Len(t, rows, 4)

	assert.Equal(t, MeteredCores, rows[0].MeteredItem)
	assert.Equal(t, MeteredVCPU, rows[1].MeteredItem)
	assert.Equal(t, MeteredMemoryGB, rows[2].MeteredItem)
	assert.Equal(t, MeteredStorageGB, rows[3].MeteredItem)

	for i, row := range rows {
		assert.Equal(t, uint(i+1), row.SequenceNo)
		assert.Equal(t, "ACME", row.AccountID)
		assert.Equal(t, "2024-01-01", row.StartDate)
		assert.Equal(t, "2024-01-02", row.EndDate)
	}

	assert.Equal(t, 4.0, rows[0].Qty)
	assert.Equal(t, 2.0, rows[1].Qty)
	assert.Equal(t, 4.0, rows[2].Qty)
	assert.Equal(t, 100.0, rows[3].Qty)
}

func TestBuildRowsZeroFileServerPolicy(t *testing.T) {
	snapshot := &inventory.Snapshot{
		FileServers: []inventory.FileServerRecord{
			{UUID: "fs1", Name: "files-01", UsedBytes: 0},
			{UUID: "fs2", Name: "files-02", UsedBytes: 1 << 40},
		},
	}

	t.Run("suppressed", func(t *testing.T) {
		w := NewBillingWriter(afero.NewMemMapFs(), BillingConfig{EmitZeroFileServers: false})
		rows := w.BuildRows(snapshot, billingWindow.start, billingWindow.end)
		require.Len(t, rows, 1)
		assert.Equal(t, "fs2", rows[0].GUID)
		assert.Equal(t, 1.0, rows[0].Qty)
	})

	t.Run("emitted", func(t *testing.T) {
		w := NewBillingWriter(afero.NewMemMapFs(), BillingConfig{EmitZeroFileServers: true})
		rows := w.BuildRows(snapshot, billingWindow.start, billingWindow.end)
		require.Len(t, rows, 2)
		assert.Equal(t, 0.0, rows[0].Qty)
		assert.Equal(t, uint(1), rows[0].SequenceNo)
		assert.Equal(t, uint(2), rows[1].SequenceNo)
	})
}

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewBillingWriter(fs, BillingConfig{
		AccountID: "ACME",
		ExportDir: "/exports",
	})

	snapshot := &inventory.Snapshot{
		Hosts: []inventory.HostRecord{
			{UUID: "h1", Name: "unknown", PhysicalCores: 8},
		},
	}

	path, err := w.WriteFile(snapshot, billingWindow.start, billingWindow.end, "/exports/out.csv")
	require.NoError(t, err)
	assert.Equal(t, "/exports/out.csv", path)

	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, billingHeader, records[0])
	assert.Equal(t, []string{
		"ACME", "8", "2024-01-01", "2024-01-02", "Cores",
		"", "1", "unknown", "Host", "Physical CPU cores for host unknown", "h1",
	}, records[1])
}

func TestWriteFileGeneratesName(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewBillingWriter(fs, BillingConfig{ExportDir: "/data/exports"})

	path, err := w.WriteFile(&inventory.Snapshot{}, billingWindow.start, billingWindow.end, "")
	require.NoError(t, err)
	assert.Contains(t, path, "/data/exports/nutanix_export_")

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWriteFileRewrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewBillingWriter(fs, BillingConfig{AccountID: "ACME", ExportDir: "/exports"})

	big := &inventory.Snapshot{
		Hosts: []inventory.HostRecord{
			{UUID: "h1", Name: "node-1", PhysicalCores: 8},
			{UUID: "h2", Name: "node-2", PhysicalCores: 8},
		},
	}
	small := &inventory.Snapshot{
		Hosts: []inventory.HostRecord{
			{UUID: "h1", Name: "node-1", PhysicalCores: 8},
		},
	}

	_, err := w.WriteFile(big, billingWindow.start, billingWindow.end, "/exports/out.csv")
	require.NoError(t, err)
	_, err = w.WriteFile(small, billingWindow.start, billingWindow.end, "/exports/out.csv")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/exports/out.csv")
	require.NoError(t, err)

	// header plus exactly one row; the second write did not append
	assert.Equal(t, 2, countLines(data))
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

func TestPriorDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 13, 45, 12, 0, time.UTC)
	start, end := PriorDay(now)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), end)
}

func TestFormatQty(t *testing.T) {
	assert.Equal(t, "8", formatQty(8))
	assert.Equal(t, "0.5", formatQty(0.5))
	assert.Equal(t, "1.2346", formatQty(1.2346))
	assert.Equal(t, "0", formatQty(0))
}
