package sink

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/inventory"
)

// MeteredItem is a billable resource category.
type MeteredItem string

const (
	MeteredCores     MeteredItem = "Cores"
	MeteredFilesTiB  MeteredItem = "Files_TiB"
	MeteredVCPU      MeteredItem = "vCPU"
	MeteredMemoryGB  MeteredItem = "Memory_GB"
	MeteredStorageGB MeteredItem = "Storage_GB"
)

// EntityType tags the origin of a billing row.
type EntityType string

const (
	EntityHost       EntityType = "Host"
	EntityVM         EntityType = "VM"
	EntityFileServer EntityType = "FileServer"
)

const dateLayout = "2006-01-02"

var billingHeader = []string{
	"accountId", "qty", "startDate", "endDate", "meteredItem",
	"appid", "sno", "fqdn", "type", "description", "guid",
}

// BillingRow is one line of the export file. Rows are derived
// deterministically from a snapshot and never stored independently of it.
type BillingRow struct {
	AccountID   string
	Qty         float64
	StartDate   string
	EndDate     string
	MeteredItem MeteredItem
	AppID       string
	SequenceNo  uint
	FQDN        string
	EntityType  EntityType
	Description string
	GUID        string
}

// BillingConfig carries the account identity and row-generation policy.
type BillingConfig struct {
	AccountID  string
	AppID      string
	ExportDir  string
	FilePrefix string

	// EmitZeroFileServers controls the zero-usage file server policy:
	// true emits a Files_TiB row even for zero consumed storage, false
	// suppresses it. Both behaviors exist in the field.
	EmitZeroFileServers bool
}

// BillingWriter renders snapshots into tab-separated billing files.
type BillingWriter struct {
	fs  afero.Fs
	cfg BillingConfig
}

func NewBillingWriter(fs afero.Fs, cfg BillingConfig) *BillingWriter {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "nutanix_export"
	}
	return &BillingWriter{fs: fs, cfg: cfg}
}

// BuildRows generates the billing rows in the fixed order that makes
// sequence numbers reproducible: Cores rows for hosts with physical cores,
// then three rows per VM (vCPU, Memory_GB, Storage_GB, emitted even when
// zero), then Files_TiB rows per file server subject to the zero-usage
// policy. Sequence numbers are 1-based and gapless.
func (w *BillingWriter) BuildRows(snapshot *inventory.Snapshot, start, end time.Time) []BillingRow {
	startDate := start.Format(dateLayout)
	endDate := end.Format(dateLayout)
	var rows []BillingRow

	add := func(item MeteredItem, qty float64, fqdn string, kind EntityType, description, guid string) {
		rows = append(rows, BillingRow{
			AccountID:   w.cfg.AccountID,
			Qty:         qty,
			StartDate:   startDate,
			EndDate:     endDate,
			MeteredItem: item,
			AppID:       w.cfg.AppID,
			SequenceNo:  uint(len(rows) + 1),
			FQDN:        fqdn,
			EntityType:  kind,
			Description: description,
			GUID:        guid,
		})
	}

	for _, h := range snapshot.Hosts {
		if h.PhysicalCores == 0 {
			continue
		}
		add(MeteredCores, float64(h.PhysicalCores), h.Name, EntityHost,
			fmt.Sprintf("Physical CPU cores for host %s", h.Name), h.UUID)
	}

	for _, vm := range snapshot.VMs {
		add(MeteredVCPU, float64(vm.VCPUCount), vm.Name, EntityVM,
			fmt.Sprintf("vCPU allocation for VM %s", vm.Name), vm.UUID)
		add(MeteredMemoryGB, inventory.Round2(inventory.BytesToGB(vm.MemoryBytes)), vm.Name, EntityVM,
			fmt.Sprintf("Memory allocation for VM %s", vm.Name), vm.UUID)
		add(MeteredStorageGB, inventory.Round2(inventory.BytesToGB(vm.DiskBytes)), vm.Name, EntityVM,
			fmt.Sprintf("Disk allocation for VM %s", vm.Name), vm.UUID)
	}

	for _, fs := range snapshot.FileServers {
		if fs.UsedBytes == 0 && !w.cfg.EmitZeroFileServers {
			continue
		}
		add(MeteredFilesTiB, inventory.Round4(inventory.BytesToTiB(fs.UsedBytes)), fs.Name, EntityFileServer,
			fmt.Sprintf("Files consumed storage for %s", fs.Name), fs.UUID)
	}

	return rows
}

// WriteFile renders the snapshot to a tab-separated file covering the given
// billing period. When path is empty the file is created under ExportDir
// with a timestamped name. The file is fully rewritten, never appended.
// It returns the path written.
func (w *BillingWriter) WriteFile(snapshot *inventory.Snapshot, start, end time.Time, path string) (string, error) {
	if path == "" {
		if err := w.fs.MkdirAll(w.cfg.ExportDir, 0o755); err != nil {
			return "", errors.Wrap(err, "creating export directory")
		}
		name := fmt.Sprintf("%s_%s.csv", w.cfg.FilePrefix, time.Now().Format("20060102_150405"))
		path = filepath.Join(w.cfg.ExportDir, name)
	}

	rows := w.BuildRows(snapshot, start, end)

	f, err := w.fs.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "creating billing file %s", path)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Comma = '\t'

	if err := cw.Write(billingHeader); err != nil {
		return "", errors.Wrap(err, "writing billing header")
	}
	for _, row := range rows {
		record := []string{
			row.AccountID,
			formatQty(row.Qty),
			row.StartDate,
			row.EndDate,
			string(row.MeteredItem),
			row.AppID,
			strconv.FormatUint(uint64(row.SequenceNo), 10),
			row.FQDN,
			string(row.EntityType),
			row.Description,
			row.GUID,
		}
		if err := cw.Write(record); err != nil {
			return "", errors.Wrap(err, "writing billing row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", errors.Wrapf(err, "flushing billing file %s", path)
	}

	zap.S().Named("billing").Infof("exported %d rows for %s to %s", len(rows), start.Format(dateLayout), path)
	return path, nil
}

// Name implements Sink.
func (w *BillingWriter) Name() string { return "billing" }

// Publish implements Sink: it writes the snapshot as a billing file for the
// prior calendar day, the window used by the daily schedule.
func (w *BillingWriter) Publish(snapshot *inventory.Snapshot) error {
	start, end := PriorDay(time.Now())
	_, err := w.WriteFile(snapshot, start, end, "")
	return err
}

// PriorDay returns the billing window ending at the most recent midnight.
func PriorDay(now time.Time) (start, end time.Time) {
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start = end.AddDate(0, 0, -1)
	return start, end
}

// formatQty renders a quantity as decimal text with no trailing zeros, so
// integral quantities print as integers.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
