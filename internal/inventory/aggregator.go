package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/prism"
)

const defaultPageSize = 500

// API is the remote inventory surface the aggregator consumes. Implemented
// by prism.Client; mocked in tests.
type API interface {
	ListClusterSummaries(ctx context.Context) ([]prism.Entity, error)
	ListClusterStats(ctx context.Context) ([]prism.ClusterV2, error)
	ListHosts(ctx context.Context, offset, length int) (*prism.Page, error)
	ListVMs(ctx context.Context, offset, length int) (*prism.Page, error)
	ListStorageContainers(ctx context.Context) ([]prism.StorageContainerV2, error)
	ListFileServers(ctx context.Context) ([]prism.FileServer, error)
	GetFileServerStats(ctx context.Context, id string) (*prism.FileServerStats, error)
}

// Aggregator runs full collection passes against the remote inventory.
// A pass never fails: every step degrades to an empty or partial
// contribution, and the snapshot is returned regardless.
type Aggregator struct {
	client   API
	pageSize int
}

func NewAggregator(client API, pageSize int) *Aggregator {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Aggregator{client: client, pageSize: pageSize}
}

// RunPass executes one collection pass. Clusters are listed first so the
// uuid-to-name index exists before hosts and VMs resolve their references.
func (a *Aggregator) RunPass(ctx context.Context) *Snapshot {
	log := zap.S().Named("aggregator")
	snapshot := &Snapshot{
		ID:      uuid.New(),
		TakenAt: time.Now().UTC(),
	}

	clusters, index := a.collectClusters(ctx)
	snapshot.Clusters = clusters

	snapshot.Hosts = a.collectHosts(ctx, index)
	snapshot.VMs = a.collectVMs(ctx, index)
	snapshot.Containers = a.collectContainers(ctx)
	snapshot.FileServers = a.collectFileServers(ctx)

	log.Infof("pass %s complete: %d clusters, %d hosts, %d vms, %d containers, %d file servers",
		snapshot.ID, len(snapshot.Clusters), len(snapshot.Hosts), len(snapshot.VMs),
		len(snapshot.Containers), len(snapshot.FileServers))
	return snapshot
}

func (a *Aggregator) collectClusters(ctx context.Context) ([]ClusterRecord, ClusterIndex) {
	log := zap.S().Named("aggregator")

	index := ClusterIndex{}
	summaries, err := a.client.ListClusterSummaries(ctx)
	if err != nil {
		log.Errorf("listing cluster summaries: %v", err)
	} else {
		index = NewClusterIndex(summaries)
	}

	stats, err := a.client.ListClusterStats(ctx)
	if err != nil {
		log.Errorf("listing cluster stats: %v", err)
		return nil, index
	}

	records := make([]ClusterRecord, 0, len(stats))
	for _, c := range stats {
		rec := NormalizeCluster(c)
		index.Add(rec.UUID, rec.Name)
		records = append(records, rec)
	}
	return records, index
}

func (a *Aggregator) collectHosts(ctx context.Context, index ClusterIndex) []HostRecord {
	entities, err := a.pageAll(ctx, a.client.ListHosts)
	if err != nil {
		zap.S().Named("aggregator").Errorf("listing hosts: %v (keeping %d already fetched)", err, len(entities))
	}

	records := make([]HostRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, NormalizeHost(e, index))
	}
	return records
}

func (a *Aggregator) collectVMs(ctx context.Context, index ClusterIndex) []VMRecord {
	entities, err := a.pageAll(ctx, a.client.ListVMs)
	if err != nil {
		zap.S().Named("aggregator").Errorf("listing vms: %v (keeping %d already fetched)", err, len(entities))
	}

	records := make([]VMRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, NormalizeVM(e, index))
	}
	return records
}

// pageAll follows the v3 pagination contract: request successive pages until
// a page comes back empty or the cumulative count reaches the reported
// total. On a page failure it returns whatever was accumulated so far along
// with the error; the partial result is still usable.
func (a *Aggregator) pageAll(ctx context.Context, list func(ctx context.Context, offset, length int) (*prism.Page, error)) ([]prism.Entity, error) {
	var all []prism.Entity
	offset := 0
	for {
		page, err := list(ctx, offset, a.pageSize)
		if err != nil {
			return all, errors.Wrapf(err, "page at offset %d", offset)
		}
		if len(page.Entities) == 0 {
			return all, nil
		}
		all = append(all, page.Entities...)
		if len(all) >= page.TotalMatches {
			return all, nil
		}
		offset += a.pageSize
	}
}

func (a *Aggregator) collectContainers(ctx context.Context) []StorageContainerRecord {
	containers, err := a.client.ListStorageContainers(ctx)
	if err != nil {
		zap.S().Named("aggregator").Errorf("listing storage containers: %v", err)
		return nil
	}

	records := make([]StorageContainerRecord, 0, len(containers))
	for _, c := range containers {
		records = append(records, NormalizeContainer(c))
	}
	return records
}

func (a *Aggregator) collectFileServers(ctx context.Context) []FileServerRecord {
	log := zap.S().Named("aggregator")

	servers, err := a.client.ListFileServers(ctx)
	if err != nil {
		if errors.Is(err, prism.ErrUnavailable) {
			log.Debug("files API not available, skipping file servers")
		} else {
			log.Errorf("listing file servers: %v", err)
		}
		return nil
	}

	records := make([]FileServerRecord, 0, len(servers))
	for _, fs := range servers {
		stats, err := a.client.GetFileServerStats(ctx, fs.ExtID)
		if err != nil {
			// The server stays in the snapshot with zero-valued stats.
			log.Warnf("stats for file server %s (%s): %v", fs.Name, fs.ExtID, err)
			stats = nil
		}
		records = append(records, NormalizeFileServer(fs, stats))
	}
	return records
}
