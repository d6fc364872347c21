package lstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/store"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = partition.Key{MatrixID: 1, PartitionID: 0, StartRow: 0, EndRow: 4, StartCol: 100, EndCol: 110}

func requireCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr), "expected store error, got %v", err)
	assert.Equal(t, code, storeErr.Code)
}

func TestAddRowAccumulates(t *testing.T) {
	s := NewLocalStore()

	require.NoError(t, s.AddRow(testKey, 2, vector.SparseOf(10, []int32{1, 5}, []float64{1.5, -2})))
	require.NoError(t, s.AddRow(testKey, 2, vector.SparseOf(10, []int32{5, 9}, []float32{2, 3})))
	require.NoError(t, s.AddRow(testKey, 2, vector.DenseOf([]int64{1, 1})))

	cols, values, err := s.GetRow(testKey, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 5, 9}, cols)
	assert.Equal(t, []float64{1, 2.5, 0, 3}, values)

	cols, values, err = s.GetRow(testKey, 3)
	require.NoError(t, err)
	assert.Empty(t, cols)
	assert.Empty(t, values)
}

func TestAddRowErrors(t *testing.T) {
	s := NewLocalStore()

	requireCode(t, s.AddRow(testKey, 4, vector.NewSparse[float64](10, 0)), store.RetCInvalidOperation)
	requireCode(t, s.AddRow(testKey, 0, vector.NewSparse[float64](11, 0)), store.RetCInvalidOperation)

	require.NoError(t, s.AddRow(testKey, 0, vector.NewSparse[float64](10, 0)))
	other := testKey
	other.EndCol = 120
	requireCode(t, s.AddRow(other, 0, vector.NewSparse[float64](10, 0)), store.RetCInvalidOperation)
}

func TestGetRowUnknownPartition(t *testing.T) {
	s := NewLocalStore()
	_, _, err := s.GetRow(testKey, 0)
	requireCode(t, err, store.RetCNotFound)
}

func TestFeats(t *testing.T) {
	s := NewLocalStore()
	feat := vector.DenseOf([]float32{1, 2, 3})

	requireCode(t, s.SetFeats(testKey, []int32{100}, nil), store.RetCInvalidOperation)
	requireCode(t, s.SetFeats(testKey, []int32{99}, []*vector.Vector[float32]{feat}), store.RetCInvalidOperation)

	require.NoError(t, s.SetFeats(testKey, []int32{100, 101}, []*vector.Vector[float32]{feat, nil}))
	feat.Set(0, 42)

	got, ok, err := s.GetFeats(testKey, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got.Values())

	_, ok, err = s.GetFeats(testKey, 101)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotRestore(t *testing.T) {
	s := NewLocalStore()
	second := testKey
	second.PartitionID = 1
	second.StartCol, second.EndCol = 110, 120
	otherMatrix := testKey
	otherMatrix.MatrixID = 2

	require.NoError(t, s.AddRow(testKey, 0, vector.SparseOf(10, []int32{1}, []float64{1})))
	require.NoError(t, s.AddRow(second, 0, vector.SparseOf(10, []int32{2}, []float64{2})))
	require.NoError(t, s.AddRow(otherMatrix, 0, vector.SparseOf(10, []int32{3}, []float64{3})))

	snap, err := s.Snapshot(1)
	require.NoError(t, err)
	require.Len(t, snap.Partitions, 2)
	assert.Equal(t, int32(0), snap.Partitions[0].Key.PartitionID)

	cp := store.NewMemoryCheckpointer()
	require.NoError(t, cp.Save(context.Background(), snap))

	// changes after the snapshot are rolled back by the restore
	require.NoError(t, s.AddRow(testKey, 0, vector.SparseOf(10, []int32{1}, []float64{10})))

	loaded, ok, err := cp.Load(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Restore(loaded))

	_, values, err := s.GetRow(testKey, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, values)

	_, values, err = s.GetRow(otherMatrix, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, values)

	_, ok, err = cp.Load(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetInfo(t *testing.T) {
	s := NewLocalStore()
	require.NoError(t, s.AddRow(testKey, 0, vector.SparseOf(10, []int32{1, 2}, []float64{1, 1})))
	require.NoError(t, s.AddRow(testKey, 1, vector.SparseOf(10, []int32{1, 2, 3, 4}, []float64{1, 1, 1, 1})))

	info := s.GetInfo()
	assert.Equal(t, 1, info.Partitions)
	assert.Equal(t, 2, info.Rows)
	assert.Equal(t, 6, info.Entries)
	assert.Equal(t, uint64(2), info.Updates)
	assert.Equal(t, 3.0, info.RowSizes.Mean)
	assert.Equal(t, 0.5, info.RowSizes.MinMaxRatio)
}

func TestConcurrentAddRow(t *testing.T) {
	s := NewLocalStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, s.AddRow(testKey, 0, vector.SparseOf(10, []int32{0}, []float64{1})))
			}
		}()
	}
	wg.Wait()

	_, values, err := s.GetRow(testKey, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{800}, values)
}
