package row

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dPS/cmd/util"
	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/rpc/client"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dPS servers",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfNNZ        = 1000
	perfThreshold  = 0.5
	perfFeatDim    = 16
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. update-dense,get-row)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "nnz"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of non-zero entries of a sparse update"))
	key = "threshold"
	perfTestCmd.Flags().Float64(key, 0.5, util.WrapString("Filter threshold of the update-filtered test, values are drawn from [-1, 1)"))
	key = "feat-dim"
	perfTestCmd.Flags().Int(key, 16, util.WrapString("Dimension of the node features of the feats test"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfNNZ = viper.GetInt("nnz")
	perfThreshold = viper.GetFloat64("threshold")
	perfFeatDim = viper.GetInt("feat-dim")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	m, ok := layout.Matrix(matrixID())
	if !ok {
		return fmt.Errorf("matrix %d is not part of the layout", matrixID())
	}

	fmt.Println("Performance testing tool for dPS servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Matrix: %d (%d x %d, %d partitions)\n", m.ID, m.Rows, m.Cols, len(m.Partitions))
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	ctx := context.Background()

	bench := func(name string, op func(i int) error) {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := op(counter); err != nil {
						log.Printf("(%s) - error: %v\n", name, err)
					}
					counter++
				}
			})
		})
		results[name] = result
		printResult(name, result)
	}

	sparse := randomSparseUpdates(m, perfNNZ)
	bench("update-sparse", func(i int) error {
		return agent.UpdateRow(ctx, m.ID, sparse[i%len(sparse)], client.NoFilter)
	})
	bench("update-filtered", func(i int) error {
		return agent.UpdateRow(ctx, m.ID, sparse[i%len(sparse)], perfThreshold)
	})

	dense := randomDenseUpdates(m)
	bench("update-dense", func(i int) error {
		return agent.UpdateRow(ctx, m.ID, dense[i%len(dense)], client.NoFilter)
	})

	bench("get-row", func(i int) error {
		_, err := agent.GetRow(ctx, m.ID, int32(i)%m.Rows)
		return err
	})

	bench("feats", func(i int) error {
		node := int32(int64(i) % m.Cols)
		feat := make([]float32, perfFeatDim)
		for j := range feat {
			feat[j] = float32(i + j)
		}
		return agent.InitNodeFeats(ctx, m.ID, []int32{node}, []*vector.Vector[float32]{vector.DenseOf(feat)})
	})

	fmt.Println()
	fmt.Println("Agent timings:")
	agent.WriteStats(os.Stdout)

	// Save results to CSV if path provided
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig(), m); err != nil {
			return err
		}
		fmt.Printf("Results saved to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// randomSparseUpdates creates one sparse update with nnz random columns per row
func randomSparseUpdates(m *partition.MatrixLayout, nnz int) []*split.RowUpdate {
	rnd := rand.New(rand.NewSource(42))
	nnz = min(nnz, int(m.Cols))

	out := make([]*split.RowUpdate, 0, m.Rows)
	for row := int32(0); row < m.Rows; row++ {
		cols := make([]int32, 0, nnz)
		for _, c := range rnd.Perm(int(m.Cols))[:nnz] {
			cols = append(cols, int32(c))
		}
		sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

		values := make([]float64, nnz)
		for i := range values {
			values[i] = rnd.Float64()*2 - 1
		}
		u, _ := split.NewSparseUpdate(row, cols, values)
		out = append(out, u)
	}
	return out
}

// randomDenseUpdates creates one dense update over all columns per row
func randomDenseUpdates(m *partition.MatrixLayout) []*split.RowUpdate {
	rnd := rand.New(rand.NewSource(7))
	out := make([]*split.RowUpdate, 0, m.Rows)
	for row := int32(0); row < m.Rows; row++ {
		values := make([]float64, m.Cols)
		for i := range values {
			values[i] = rnd.Float64()
		}
		out = append(out, split.NewDenseUpdate(row, values))
	}
	return out
}

// shouldSkip checks if a test should be skipped
func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if strings.TrimSpace(skip) == test {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig, m *partition.MatrixLayout) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Transport", "Threads", "NNZ", "Threshold",
		"Rows", "Cols", "Partitions",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// sorted for stable output
	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	// Write test results
	for _, test := range tests {
		result := results[test]
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfNNZ),
			strconv.FormatFloat(perfThreshold, 'g', -1, 64),
			strconv.Itoa(int(m.Rows)),
			strconv.FormatInt(m.Cols, 10),
			strconv.Itoa(len(m.Partitions)),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
