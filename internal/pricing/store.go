package pricing

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Catalog selects one of the two price catalogs: compute rates billed per
// core ("nci") and files rates billed per TiB ("nus").
type Catalog string

const (
	CatalogCompute Catalog = "nci"
	CatalogFiles   Catalog = "nus"
)

var ErrNotFound = errors.New("pricing entry not found")

// Rate is one priced product entry.
type Rate struct {
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourly_rate"`
	AnnualRate float64 `json:"annual_rate"`
	Unit       string  `json:"unit"`
}

// ActiveCodes marks which product code is the active rate per catalog.
type ActiveCodes struct {
	Compute string `json:"nci"`
	Files   string `json:"nus"`
}

// PriceList is the full on-disk document. The JSON keys are the historical
// file format and must not change; existing pricing.json files keep working.
type PriceList struct {
	Compute map[string]Rate `json:"nci"`
	Files   map[string]Rate `json:"nus"`
	Active  ActiveCodes     `json:"active"`
}

func newPriceList() *PriceList {
	return &PriceList{
		Compute: map[string]Rate{},
		Files:   map[string]Rate{},
	}
}

func (p *PriceList) catalog(c Catalog) map[string]Rate {
	if c == CatalogFiles {
		return p.Files
	}
	return p.Compute
}

func (p *PriceList) activeCode(c Catalog) string {
	if c == CatalogFiles {
		return p.Active.Files
	}
	return p.Active.Compute
}

func (p *PriceList) setActiveCode(c Catalog, code string) {
	if c == CatalogFiles {
		p.Active.Files = code
		return
	}
	p.Active.Compute = code
}

// ActiveRate returns the currently active rate for a catalog, when set.
func (p *PriceList) ActiveRate(c Catalog) (Rate, bool) {
	code := p.activeCode(c)
	if code == "" {
		return Rate{}, false
	}
	rate, ok := p.catalog(c)[code]
	return rate, ok
}

// Store is the file-backed price list. Mutations rewrite the whole file and
// republish the pricing gauges.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Load reads the price list; a missing file yields an empty list.
func (s *Store) Load() (*PriceList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*PriceList, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newPriceList(), nil
		}
		return nil, errors.Wrapf(err, "reading pricing file %s", s.path)
	}

	list := newPriceList()
	if err := json.Unmarshal(data, list); err != nil {
		return nil, errors.Wrapf(err, "parsing pricing file %s", s.path)
	}
	if list.Compute == nil {
		list.Compute = map[string]Rate{}
	}
	if list.Files == nil {
		list.Files = map[string]Rate{}
	}
	return list, nil
}

func (s *Store) save(list *PriceList) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "creating pricing directory")
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling price list")
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing pricing file %s", s.path)
	}

	publishPricingMetrics(list)
	return nil
}

// Add inserts or replaces a rate entry.
func (s *Store) Add(c Catalog, code string, rate Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	list.catalog(c)[code] = rate
	return s.save(list)
}

// Delete removes a rate entry; deleting the active entry clears the active
// marker for that catalog.
func (s *Store) Delete(c Catalog, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := list.catalog(c)[code]; !ok {
		return ErrNotFound
	}
	delete(list.catalog(c), code)
	if list.activeCode(c) == code {
		list.setActiveCode(c, "")
	}
	return s.save(list)
}

// SetActive marks an existing entry as the active rate for its catalog.
func (s *Store) SetActive(c Catalog, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := list.catalog(c)[code]; !ok {
		return ErrNotFound
	}
	list.setActiveCode(c, code)
	return s.save(list)
}

// ImportCSV merges entries from a CSV document with the header
// type,product_code,name,hourly_rate,annual_rate,unit. Rows with an unknown
// type or an empty product code are skipped. Returns the number imported.
func (s *Store) ImportCSV(r io.Reader) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return 0, err
	}

	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return 0, errors.Wrap(err, "parsing pricing CSV")
	}

	count := 0
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "type" {
			continue // header
		}
		if len(rec) < 4 {
			continue
		}

		c := Catalog(rec[0])
		if c != CatalogCompute && c != CatalogFiles {
			continue
		}
		code := rec[1]
		if code == "" {
			continue
		}

		rate := Rate{Name: rec[2]}
		if rate.Name == "" {
			rate.Name = code
		}
		rate.HourlyRate, _ = strconv.ParseFloat(rec[3], 64)
		if len(rec) > 4 {
			rate.AnnualRate, _ = strconv.ParseFloat(rec[4], 64)
		}
		if len(rec) > 5 {
			rate.Unit = rec[5]
		}
		if rate.Unit == "" {
			if c == CatalogCompute {
				rate.Unit = "core"
			} else {
				rate.Unit = "TiB"
			}
		}

		list.catalog(c)[code] = rate
		count++
	}

	if err := s.save(list); err != nil {
		return 0, err
	}
	return count, nil
}

// ExportCSV writes the full price list in the import format.
func (s *Store) ExportCSV(w io.Writer) error {
	list, err := s.Load()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"type", "product_code", "name", "hourly_rate", "annual_rate", "unit"}); err != nil {
		return err
	}
	for _, c := range []Catalog{CatalogCompute, CatalogFiles} {
		for code, rate := range list.catalog(c) {
			record := []string{
				string(c), code, rate.Name,
				strconv.FormatFloat(rate.HourlyRate, 'f', -1, 64),
				strconv.FormatFloat(rate.AnnualRate, 'f', -1, 64),
				rate.Unit,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// PublishMetrics loads the price list and refreshes the pricing gauges.
func (s *Store) PublishMetrics() error {
	list, err := s.Load()
	if err != nil {
		return err
	}
	publishPricingMetrics(list)
	return nil
}

// Watch refreshes the pricing gauges whenever the file changes on disk, so
// out-of-band edits show up without a restart. It blocks until the context
// is canceled. Only works when the store is backed by the OS filesystem.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating pricing file watcher")
	}
	defer watcher.Close()

	// Watch the directory: editors and atomic writes replace the file.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return errors.Wrap(err, "watching pricing directory")
	}

	log := zap.S().Named("pricing")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			log.Infof("pricing file changed on disk, refreshing gauges")
			if err := s.PublishMetrics(); err != nil {
				log.Errorf("refreshing pricing gauges: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("pricing file watcher: %v", err)
		}
	}
}
