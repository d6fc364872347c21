package serializer

import (
	"math"
	"testing"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/split"
)

// benchmarkRequests returns update requests of different sizes and filter settings
func benchmarkRequests() map[string]request.Request {
	out := map[string]request.Request{
		"Checkpoint": request.NewCheckpointRequest(1, testTarget, 1),
	}

	for _, size := range []struct {
		name string
		cols int
	}{{"Small", 16}, {"Medium", 1024}, {"Large", 64 * 1024}} {
		offsets := make([]int32, size.cols)
		values := make([]float64, size.cols)
		for i := range offsets {
			offsets[i] = int32(i)
			values[i] = math.Sin(float64(i))
		}
		u, _ := split.NewSparseUpdate(0, offsets, values)
		key := partition.Key{EndRow: 1, EndCol: int64(size.cols)}

		s, _ := split.NewSplit(u, 0, size.cols)
		out["Update"+size.name] = request.NewUpdateRequest(1, testTarget, partition.NewSplitContext(key), []*split.RowUpdateSplit{s})

		f, _ := split.NewSplit(u, 0, size.cols)
		out["UpdateFiltered"+size.name] = request.NewUpdateRequest(1, testTarget, partition.NewSplitContext(key).WithFilter(0.5), []*split.RowUpdateSplit{f})
	}
	return out
}

// BenchmarkSerialize benchmarks request serialization
func BenchmarkSerialize(b *testing.B) {
	serializer := NewBinarySerializer()

	for name, req := range benchmarkRequests() {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, err := serializer.SerializeRequest(req)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
			}
		})
	}
}

// BenchmarkDeserialize benchmarks request deserialization
func BenchmarkDeserialize(b *testing.B) {
	serializer := NewBinarySerializer()

	for name, req := range benchmarkRequests() {
		data, err := serializer.SerializeRequest(req)
		if err != nil {
			b.Fatalf("Failed to serialize %s: %v", name, err)
		}

		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := serializer.DeserializeRequest(data); err != nil {
					b.Fatalf("Failed to deserialize: %v", err)
				}
			}
		})
	}
}

// BenchmarkSize reports the frame size for each request
func BenchmarkSize(b *testing.B) {
	serializer := NewBinarySerializer()

	for name, req := range benchmarkRequests() {
		b.Run(name, func(b *testing.B) {
			data, err := serializer.SerializeRequest(req)
			if err != nil {
				b.Fatalf("Failed to serialize: %v", err)
			}

			// Report the size as a custom metric
			b.ReportMetric(float64(len(data)), "bytes")

			for i := 0; i < b.N; i++ {
				_ = data
			}
		})
	}
}
