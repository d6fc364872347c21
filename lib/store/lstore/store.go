package lstore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/store"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("store")

// partitionData is the content of one partition, rows are sparse maps of local column to value
type partitionData struct {
	mu    sync.RWMutex
	key   partition.Key
	rows  map[int32]map[int32]float64
	feats map[int32]*vector.Vector[float32]
}

type storeImpl struct {
	partitions *xsync.MapOf[uint64, *partitionData]
	updates    atomic.Uint64
}

// NewLocalStore creates a new in-memory store instance.
// This store implementation is not replicated, a restarted server starts empty
// unless a checkpoint is restored.
func NewLocalStore() store.IStore {
	return &storeImpl{
		partitions: xsync.NewMapOf[uint64, *partitionData](),
	}
}

// partitionID packs matrix and partition id into the map key
func partitionID(key partition.Key) uint64 {
	return uint64(uint32(key.MatrixID))<<32 | uint64(uint32(key.PartitionID))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) AddRow(key partition.Key, row int32, v vector.Any) error {
	if !key.ContainsRow(row) {
		return store.NewError(store.RetCInvalidOperation, "row %d outside of partition %s", row, key)
	}
	if int64(v.Dim()) > key.ColSpan() {
		return store.NewError(store.RetCInvalidOperation, "vector of dim %d for %d columns", v.Dim(), key.ColSpan())
	}

	p, err := s.loadOrCreate(key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.rows[row]
	if !ok {
		r = make(map[int32]float64, v.Size())
		p.rows[row] = r
	}
	v.ForEachFloat64(func(col int32, value float64) {
		r[col] += value
	})
	s.updates.Add(1)
	return nil
}

func (s *storeImpl) GetRow(key partition.Key, row int32) ([]int32, []float64, error) {
	p, err := s.load(key)
	if err != nil {
		return nil, nil, err
	}
	if !key.ContainsRow(row) {
		return nil, nil, store.NewError(store.RetCInvalidOperation, "row %d outside of partition %s", row, key)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	r := p.rows[row]
	cols := make([]int32, 0, len(r))
	for col := range r {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

	values := make([]float64, len(cols))
	for i, col := range cols {
		values[i] = r[col]
	}
	return cols, values, nil
}

func (s *storeImpl) SetFeats(key partition.Key, nodes []int32, feats []*vector.Vector[float32]) error {
	if len(nodes) != len(feats) {
		return store.NewError(store.RetCInvalidOperation, "%d nodes but %d feature vectors", len(nodes), len(feats))
	}
	for _, node := range nodes {
		if !key.ContainsCol(int64(node)) {
			return store.NewError(store.RetCInvalidOperation, "node %d outside of partition %s", node, key)
		}
	}

	p, err := s.loadOrCreate(key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, node := range nodes {
		if feats[i] == nil {
			continue
		}
		p.feats[node] = feats[i].Clone()
	}
	s.updates.Add(1)
	return nil
}

func (s *storeImpl) GetFeats(key partition.Key, node int32) (*vector.Vector[float32], bool, error) {
	p, err := s.load(key)
	if err != nil {
		return nil, false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.feats[node]
	if !ok {
		return nil, false, nil
	}
	return f.Clone(), true, nil
}

func (s *storeImpl) Snapshot(matrixID int32) (*store.Snapshot, error) {
	snap := &store.Snapshot{MatrixID: matrixID, TakenAt: time.Now()}

	s.partitions.Range(func(_ uint64, p *partitionData) bool {
		if p.key.MatrixID != matrixID {
			return true
		}
		snap.Partitions = append(snap.Partitions, p.copy())
		return true
	})

	sort.Slice(snap.Partitions, func(i, j int) bool {
		return snap.Partitions[i].Key.PartitionID < snap.Partitions[j].Key.PartitionID
	})
	Logger.Debugf("Snapshot of matrix %d with %d partitions", matrixID, len(snap.Partitions))
	return snap, nil
}

func (s *storeImpl) Restore(snap *store.Snapshot) error {
	for _, ps := range snap.Partitions {
		if ps.Key.MatrixID != snap.MatrixID {
			return store.NewError(store.RetCInvalidOperation, "partition %s in snapshot of matrix %d", ps.Key, snap.MatrixID)
		}
	}

	// drop partitions of the matrix that are not part of the snapshot
	s.partitions.Range(func(id uint64, p *partitionData) bool {
		if p.key.MatrixID == snap.MatrixID {
			s.partitions.Delete(id)
		}
		return true
	})

	for _, ps := range snap.Partitions {
		p := newPartition(ps.Key)
		for row, r := range ps.Rows {
			p.rows[row] = cloneRow(r)
		}
		for node, f := range ps.Feats {
			p.feats[node] = f.Clone()
		}
		s.partitions.Store(partitionID(ps.Key), p)
	}
	Logger.Infof("Restored matrix %d from snapshot taken at %s", snap.MatrixID, snap.TakenAt.Format(time.RFC3339))
	return nil
}

func (s *storeImpl) GetInfo() store.Info {
	info := store.Info{Updates: s.updates.Load()}
	var rowSizes []float64

	s.partitions.Range(func(_ uint64, p *partitionData) bool {
		p.mu.RLock()
		defer p.mu.RUnlock()

		info.Partitions++
		info.Rows += len(p.rows)
		info.Feats += len(p.feats)
		for _, r := range p.rows {
			info.Entries += len(r)
			rowSizes = append(rowSizes, float64(len(r)))
		}
		return true
	})

	info.RowSizes = store.NewStats(rowSizes)
	return info
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func newPartition(key partition.Key) *partitionData {
	return &partitionData{
		key:   key,
		rows:  make(map[int32]map[int32]float64),
		feats: make(map[int32]*vector.Vector[float32]),
	}
}

// load returns an existing partition, the stored key must match the requested one
func (s *storeImpl) load(key partition.Key) (*partitionData, error) {
	p, ok := s.partitions.Load(partitionID(key))
	if !ok {
		return nil, store.NewError(store.RetCNotFound, "partition %d of matrix %d not found", key.PartitionID, key.MatrixID)
	}
	if p.key != key {
		return nil, store.NewError(store.RetCInvalidOperation, "partition key %s does not match stored %s", key, p.key)
	}
	return p, nil
}

// loadOrCreate returns the partition of key, creating it on first use
func (s *storeImpl) loadOrCreate(key partition.Key) (*partitionData, error) {
	p, _ := s.partitions.LoadOrCompute(partitionID(key), func() *partitionData {
		return newPartition(key)
	})
	if p.key != key {
		return nil, store.NewError(store.RetCInvalidOperation, "partition key %s does not match stored %s", key, p.key)
	}
	return p, nil
}

// copy returns a deep copy of the partition
func (p *partitionData) copy() store.PartitionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ps := store.PartitionSnapshot{
		Key:   p.key,
		Rows:  make(map[int32]map[int32]float64, len(p.rows)),
		Feats: make(map[int32]*vector.Vector[float32], len(p.feats)),
	}
	for row, r := range p.rows {
		ps.Rows[row] = cloneRow(r)
	}
	for node, f := range p.feats {
		ps.Feats[node] = f.Clone()
	}
	return ps
}

func cloneRow(r map[int32]float64) map[int32]float64 {
	c := make(map[int32]float64, len(r))
	for col, v := range r {
		c[col] = v
	}
	return c
}
