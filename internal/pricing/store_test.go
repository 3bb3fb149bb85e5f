package pricing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(afero.NewMemMapFs(), "/data/pricing/pricing.json")
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := newTestStore()

	list, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, list.Compute)
	assert.Empty(t, list.Files)
	assert.Equal(t, "", list.Active.Compute)
}

func TestStoreAddAndLoad(t *testing.T) {
	store := newTestStore()

	rate := Rate{Name: "NCI Pro", HourlyRate: 0.05, AnnualRate: 400, Unit: "core"}
	require.NoError(t, store.Add(CatalogCompute, "nci-pro", rate))

	list, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rate, list.Compute["nci-pro"])
	assert.Empty(t, list.Files)
}

func TestStoreSetActive(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Add(CatalogFiles, "nus-std", Rate{Name: "NUS", HourlyRate: 0.02}))

	t.Run("unknown code", func(t *testing.T) {
		err := store.SetActive(CatalogFiles, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("known code", func(t *testing.T) {
		require.NoError(t, store.SetActive(CatalogFiles, "nus-std"))

		list, err := store.Load()
		require.NoError(t, err)
		rate, ok := list.ActiveRate(CatalogFiles)
		require.True(t, ok)
		assert.Equal(t, 0.02, rate.HourlyRate)
	})
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Add(CatalogCompute, "nci-pro", Rate{HourlyRate: 0.05}))
	require.NoError(t, store.SetActive(CatalogCompute, "nci-pro"))

	t.Run("unknown code", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(CatalogCompute, "nope"), ErrNotFound)
	})

	t.Run("deleting the active entry clears the marker", func(t *testing.T) {
		require.NoError(t, store.Delete(CatalogCompute, "nci-pro"))

		list, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, list.Compute)
		_, ok := list.ActiveRate(CatalogCompute)
		assert.False(t, ok)
		assert.Equal(t, "", list.Active.Compute)
	})
}

func TestStoreFileFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/pricing.json")

	require.NoError(t, store.Add(CatalogCompute, "nci-pro", Rate{Name: "NCI Pro", HourlyRate: 0.05}))
	require.NoError(t, store.SetActive(CatalogCompute, "nci-pro"))

	data, err := afero.ReadFile(fs, "/pricing.json")
	require.NoError(t, err)

	// legacy document keys
	assert.Contains(t, string(data), `"nci"`)
	assert.Contains(t, string(data), `"nus"`)
	assert.Contains(t, string(data), `"active"`)
}

func TestStoreImportCSV(t *testing.T) {
	store := newTestStore()

	csvDoc := strings.Join([]string{
		"type,product_code,name,hourly_rate,annual_rate,unit",
		"nci,nci-pro,NCI Pro,0.05,400,core",
		"nus,nus-std,NUS Standard,0.02,160,TiB",
		"bogus,x,Bad Type,1,1,na",
		"nci,,No Code,1,1,core",
	}, "\n")

	count, err := store.ImportCSV(strings.NewReader(csvDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	list, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.05, list.Compute["nci-pro"].HourlyRate)
	assert.Equal(t, "NUS Standard", list.Files["nus-std"].Name)
}

func TestStoreExportCSVRoundTrip(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Add(CatalogCompute, "nci-pro", Rate{Name: "NCI Pro", HourlyRate: 0.05, Unit: "core"}))
	require.NoError(t, store.Add(CatalogFiles, "nus-std", Rate{Name: "NUS", HourlyRate: 0.02, Unit: "TiB"}))

	buf := &bytes.Buffer{}
	require.NoError(t, store.ExportCSV(buf))

	other := newTestStore()
	count, err := other.ImportCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	list, err := other.Load()
	require.NoError(t, err)
	assert.Equal(t, "NCI Pro", list.Compute["nci-pro"].Name)
	assert.Equal(t, 0.02, list.Files["nus-std"].HourlyRate)
}
