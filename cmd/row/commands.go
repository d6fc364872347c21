package row

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dPS/cmd/util"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/rpc/client"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/spf13/cobra"
)

var (
	pushCmd = &cobra.Command{
		Use:   "push [row] [entries]",
		Short: "Adds an update to a row",
		Long: util.WrapString(`Adds an update to a row. Entries are sparse col:value pairs (e.g. 3:0.5,17:-1). ` +
			`With --dense, entries are plain values and the i-th value updates column i.`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := parseRow(args[0])
			if err != nil {
				return err
			}
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			dense, _ := cmd.Flags().GetBool("dense")

			var u *split.RowUpdate
			if dense {
				values, err := parseValues(args[1])
				if err != nil {
					return err
				}
				u = split.NewDenseUpdate(row, values)
			} else {
				cols, values, err := util.ParseEntries(args[1])
				if err != nil {
					return err
				}
				sortEntries(cols, values)
				if u, err = split.NewSparseUpdate(row, cols, values); err != nil {
					return err
				}
			}

			if err := agent.UpdateRow(context.Background(), matrixID(), u, threshold); err != nil {
				return err
			}
			fmt.Println("pushed successfully")
			return nil
		},
	}
	pullCmd = &cobra.Command{
		Use:   "pull [row]",
		Short: "Reads the merged row from all parameter servers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := parseRow(args[0])
			if err != nil {
				return err
			}
			v, err := agent.GetRow(context.Background(), matrixID(), row)
			if err != nil {
				return err
			}
			if v.Size() == 0 {
				fmt.Println("<empty>")
				return nil
			}
			v.ForEach(func(col int32, value float64) {
				fmt.Printf("%d:%g\n", col, value)
			})
			return nil
		},
	}
	featsCmd = &cobra.Command{
		Use:   "feats [node] [values]",
		Short: "Sets the feature vector of a node",
		Long:  util.WrapString(`Sets the feature vector of a node (a column of the matrix). Values are comma separated (e.g. 0.1,0.2,0.3).`),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("node must be a number: %w", err)
			}
			values, err := parseValues(args[1])
			if err != nil {
				return err
			}
			feat := make([]float32, len(values))
			for i, v := range values {
				feat[i] = float32(v)
			}

			if err := agent.InitNodeFeats(
				context.Background(),
				matrixID(),
				[]int32{int32(node)},
				[]*vector.Vector[float32]{vector.DenseOf(feat)},
			); err != nil {
				return err
			}
			fmt.Println("feats set successfully")
			return nil
		},
	}
	checkpointCmd = &cobra.Command{
		Use:   "checkpoint",
		Short: "Checkpoints the matrix on every parameter server holding a partition of it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := agent.Checkpoint(context.Background(), matrixID()); err != nil {
				return err
			}
			fmt.Println("checkpoint successful")
			return nil
		},
	}
)

func init() {
	pushCmd.Flags().Float64("threshold", client.NoFilter, util.WrapString("Entries with abs(value) <= threshold are not sent, 0 drops exact zeros and a negative value disables filtering (sparse only)"))
	pushCmd.Flags().Bool("dense", false, util.WrapString("Interpret entries as a dense list of values"))
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func parseRow(s string) (int32, error) {
	row, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("row must be a number: %w", err)
	}
	return int32(row), nil
}

func parseValues(s string) ([]float64, error) {
	var values []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", field, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// sortEntries orders sparse entries by column
func sortEntries(cols []int32, values []float64) {
	sort.Sort(entries{cols, values})
}

type entries struct {
	cols   []int32
	values []float64
}

func (e entries) Len() int           { return len(e.cols) }
func (e entries) Less(i, j int) bool { return e.cols[i] < e.cols[j] }
func (e entries) Swap(i, j int) {
	e.cols[i], e.cols[j] = e.cols[j], e.cols[i]
	e.values[i], e.values[j] = e.values[j], e.values[i]
}
