package partition

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// Layout describes how the matrices of a job are partitioned over the parameter servers.
// It is usually loaded from a TOML file:
//
//	[[matrix]]
//	id = 1
//	name = "weights"
//	rows = 4
//	cols = 1000
//
//	  [[matrix.partition]]
//	  id = 0
//	  ps = 0
//	  start_row = 0
//	  end_row = 4
//	  start_col = 0
//	  end_col = 500
type Layout struct {
	Matrices []MatrixLayout `toml:"matrix"`
}

// MatrixLayout is the partitioning of a single matrix
type MatrixLayout struct {
	ID         int32        `toml:"id"`
	Name       string       `toml:"name"`
	Rows       int32        `toml:"rows"`
	Cols       int64        `toml:"cols"`
	Partitions []Assignment `toml:"partition"`
}

// Assignment places one partition on a parameter server
type Assignment struct {
	ID       int32 `toml:"id"`
	Server   int32 `toml:"ps"`
	StartRow int32 `toml:"start_row"`
	EndRow   int32 `toml:"end_row"`
	StartCol int64 `toml:"start_col"`
	EndCol   int64 `toml:"end_col"`
}

// LoadLayout reads and validates a layout file
func LoadLayout(path string) (*Layout, error) {
	var l Layout
	if _, err := toml.DecodeFile(path, &l); err != nil {
		return nil, fmt.Errorf("failed to read layout %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// ParseLayout decodes and validates a layout from TOML text
func ParseLayout(data string) (*Layout, error) {
	var l Layout
	if _, err := toml.Decode(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// EvenLayout splits a rows x cols matrix into parts column ranges of (almost) equal width
// and assigns them round-robin to servers parameter servers.
func EvenLayout(matrixID int32, rows int32, cols int64, parts, servers int) MatrixLayout {
	if parts < 1 {
		parts = 1
	}
	if servers < 1 {
		servers = 1
	}
	if int64(parts) > cols && cols > 0 {
		parts = int(cols)
	}

	m := MatrixLayout{ID: matrixID, Name: fmt.Sprintf("matrix-%d", matrixID), Rows: rows, Cols: cols}
	width := cols / int64(parts)
	rest := cols % int64(parts)
	start := int64(0)
	for i := 0; i < parts; i++ {
		end := start + width
		if int64(i) < rest {
			end++
		}
		m.Partitions = append(m.Partitions, Assignment{
			ID:       int32(i),
			Server:   int32(i % servers),
			StartRow: 0,
			EndRow:   rows,
			StartCol: start,
			EndCol:   end,
		})
		start = end
	}
	return m
}

// Validate checks that ids are unique and every partition lies inside its matrix
func (l *Layout) Validate() error {
	seen := make(map[int32]bool, len(l.Matrices))
	for _, m := range l.Matrices {
		if seen[m.ID] {
			return fmt.Errorf("layout: duplicate matrix id %d", m.ID)
		}
		seen[m.ID] = true

		if len(m.Partitions) == 0 {
			return fmt.Errorf("layout: matrix %d has no partitions", m.ID)
		}
		parts := make(map[int32]bool, len(m.Partitions))
		for _, p := range m.Partitions {
			if parts[p.ID] {
				return fmt.Errorf("layout: matrix %d has duplicate partition id %d", m.ID, p.ID)
			}
			parts[p.ID] = true

			if p.StartRow < 0 || p.StartRow > p.EndRow || p.EndRow > m.Rows {
				return fmt.Errorf("layout: matrix %d partition %d has invalid rows [%d,%d)", m.ID, p.ID, p.StartRow, p.EndRow)
			}
			if p.StartCol < 0 || p.StartCol > p.EndCol || p.EndCol > m.Cols {
				return fmt.Errorf("layout: matrix %d partition %d has invalid cols [%d,%d)", m.ID, p.ID, p.StartCol, p.EndCol)
			}
			if p.Server < 0 {
				return fmt.Errorf("layout: matrix %d partition %d has invalid ps %d", m.ID, p.ID, p.Server)
			}
		}
	}
	return nil
}

// Matrix returns the layout of a matrix
func (l *Layout) Matrix(id int32) (*MatrixLayout, bool) {
	for i := range l.Matrices {
		if l.Matrices[i].ID == id {
			return &l.Matrices[i], true
		}
	}
	return nil, false
}

// Key returns the partition key of an assignment
func (m *MatrixLayout) Key(a Assignment) Key {
	return Key{
		MatrixID:    m.ID,
		PartitionID: a.ID,
		StartRow:    a.StartRow,
		EndRow:      a.EndRow,
		StartCol:    a.StartCol,
		EndCol:      a.EndCol,
	}
}

// RowPartitions returns the assignments whose row range contains row, ordered by StartCol
func (m *MatrixLayout) RowPartitions(row int32) []Assignment {
	var out []Assignment
	for _, p := range m.Partitions {
		if row >= p.StartRow && row < p.EndRow {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartCol < out[j].StartCol })
	return out
}

// Servers returns the distinct parameter servers holding a partition of the matrix
func (m *MatrixLayout) Servers() []ServerID {
	seen := make(map[int32]bool)
	var out []ServerID
	for _, p := range m.Partitions {
		if !seen[p.Server] {
			seen[p.Server] = true
			out = append(out, ServerID{Index: p.Server})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
