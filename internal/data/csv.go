package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// CSVSource reads one <SYMBOL>.csv file per symbol from a directory. The
// header names the columns; common aliases (date, ts, adj_close, vol) are
// accepted and column order does not matter.
type CSVSource struct {
	dir         string
	dateFormats []string
}

// NewCSVSource creates a CSV source rooted at dir
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{
		dir: dir,
		dateFormats: []string{
			"2006-01-02",
			time.RFC3339,
			"2006-01-02 15:04:05",
			"01/02/2006",
		},
	}
}

// Bars loads, sorts, and validates the file for symbol
func (s *CSVSource) Bars(ctx context.Context, symbol string) (market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := NormalizeSymbol(symbol)
	path := filepath.Join(s.dir, sym+".csv")

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, sym)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	bars, err := s.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// Read parses bars from CSV content
func (s *CSVSource) Read(r io.Reader) (market.Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := mapColumns(header)
	for _, required := range []string{"timestamp", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV missing required %q column", required)
		}
	}

	var bars market.Series
	skipped := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}
		bar, err := s.parseRecord(record, cols)
		if err != nil {
			skipped++
			log.Debug().Int("line", line).Err(err).Msg("Skipping malformed CSV row")
			continue
		}
		bars = append(bars, bar)
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Int("rows", len(bars)).Msg("CSV contained malformed rows")
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

// Symbols lists the *.csv files in the directory
func (s *CSVSource) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, NormalizeSymbol(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))))
	}
	sort.Strings(out)
	return out, nil
}

// mapColumns indexes header columns by canonical name. The first column wins
// for each name. Adjusted close stands in for close only when the file has no
// raw close, so adjusted prices are never paired with unadjusted open/high/low.
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeColumnName(name)
		if _, seen := cols[key]; !seen {
			cols[key] = i
		}
	}
	if _, ok := cols["close"]; !ok {
		if i, ok := cols["adj_close"]; ok {
			cols["close"] = i
		}
	}
	return cols
}

func normalizeColumnName(column string) string {
	switch c := strings.ToLower(strings.TrimSpace(column)); c {
	case "date", "ts", "time", "datetime":
		return "timestamp"
	case "o":
		return "open"
	case "h":
		return "high"
	case "l":
		return "low"
	case "c":
		return "close"
	case "adj close", "adj_close", "adjclose", "adjusted_close":
		return "adj_close"
	case "v", "vol":
		return "volume"
	default:
		return c
	}
}

func (s *CSVSource) parseRecord(record []string, cols map[string]int) (market.Bar, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	raw, _ := field("timestamp")
	ts, err := s.parseTimestamp(raw)
	if err != nil {
		return market.Bar{}, err
	}

	var vals [5]float64
	for k, name := range []string{"open", "high", "low", "close", "volume"} {
		str, ok := field(name)
		if !ok || str == "" {
			if name == "volume" {
				continue
			}
			return market.Bar{}, fmt.Errorf("missing %s", name)
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s %q: %w", name, str, err)
		}
		vals[k] = v
	}

	return market.Bar{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

func (s *CSVSource) parseTimestamp(raw string) (time.Time, error) {
	for _, format := range s.dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if unix > 1e12 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp: %s", raw)
}
