package collector

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// tableHeader is the fixed column order of the per-round result tables.
var tableHeader = []string{"node_a", "alias_a", "node_b", "alias_b", "avg_latency", "avg_busbw"}

var roundTablePattern = regexp.MustCompile(`^round(\d+)\.csv$`)

// Row is one ResultRecord destined for a round table.
type Row struct {
	Round        int
	NodeA        string
	AliasA       string
	NodeB        string
	AliasB       string
	AvgLatency   float64
	AvgBandwidth float64
}

func (r Row) record() []string {
	return []string{
		r.NodeA,
		r.AliasA,
		r.NodeB,
		r.AliasB,
		strconv.FormatFloat(r.AvgLatency, 'f', 6, 64),
		strconv.FormatFloat(r.AvgBandwidth, 'f', 6, 64),
	}
}

// appendRow adds one row to its round table, writing the header first when
// the table does not exist yet.
func appendRow(resultsDir string, row Row) error {
	path := filepath.Join(resultsDir, fmt.Sprintf("round%d.csv", row.Round))

	_, statErr := os.Stat(path)
	newTable := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open round table %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newTable {
		if err := w.Write(tableHeader); err != nil {
			return err
		}
	}
	if err := w.Write(row.record()); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// mergeTables combines every per-round table into one aggregate, each row
// prefixed with its round number. Rounds are ordered by numeric index, not
// lexicographically, under a single header. The aggregate is rewritten from
// scratch on every call so repeated merges are idempotent.
func mergeTables(resultsDir, aggregateName string) (string, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return "", fmt.Errorf("cannot read results directory %s: %w", resultsDir, err)
	}

	rounds := make(map[int]string)
	var indices []int
	for _, entry := range entries {
		m := roundTablePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		rounds[idx] = filepath.Join(resultsDir, entry.Name())
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	outPath := filepath.Join(resultsDir, aggregateName)
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("cannot create aggregate table %s: %w", outPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(append([]string{"round"}, tableHeader...)); err != nil {
		return "", err
	}

	for _, idx := range indices {
		rows, err := readTable(rounds[idx])
		if err != nil {
			return "", err
		}
		for _, record := range rows {
			if err := w.Write(append([]string{strconv.Itoa(idx)}, record...)); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	return outPath, w.Error()
}

// readTable returns a round table's data rows, header dropped.
func readTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open round table %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed round table %s: %w", path, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
