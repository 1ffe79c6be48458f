// Package signals loads trading signals from CSV exports and normalizes
// them into domain form.
package signals

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

// ErrNoSignals is returned when a file parses but yields zero usable rows.
var ErrNoSignals = fmt.Errorf("signals: no usable rows")

// timestampLayouts are tried in order when parsing signal timestamps.
// All values are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Loader reads signal CSV files. Two header schemas are recognized:
// the compact export (timestamp_utc, coin, entry, optional sl) and the
// legacy export (Timestamp or Date+Time, Coin_Name, CMP). Rows that
// fail to parse are dropped and logged, never fatal.
type Loader struct {
	logger *log.Logger
}

// NewLoader creates a Loader. A nil logger falls back to stderr.
func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(os.Stderr, "[signals] ", log.LstdFlags)
	}
	return &Loader{logger: logger}
}

// LoadFile reads and parses the CSV at path.
func (l *Loader) LoadFile(path string) ([]domain.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signals file: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load parses signals from r and returns them sorted by timestamp
// ascending. Coins are normalized to upper case.
func (l *Loader) Load(r io.Reader) ([]domain.Signal, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read signals header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var signals []domain.Signal
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			l.logger.Printf("dropping malformed row %d: %v", line, err)
			continue
		}

		sig, err := cols.parse(record)
		if err != nil {
			l.logger.Printf("dropping row %d: %v", line, err)
			continue
		}
		signals = append(signals, sig)
	}

	if len(signals) == 0 {
		return nil, ErrNoSignals
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Timestamp.Before(signals[j].Timestamp)
	})
	return signals, nil
}

// FilterByDate keeps signals with from <= timestamp < to. A zero bound
// leaves that side open.
func FilterByDate(signals []domain.Signal, from, to time.Time) []domain.Signal {
	var result []domain.Signal
	for _, s := range signals {
		if !from.IsZero() && s.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !s.Timestamp.Before(to) {
			continue
		}
		result = append(result, s)
	}
	return result
}

// columns holds resolved header indices. An index of -1 means the
// column is absent.
type columns struct {
	timestamp int
	date      int
	timeOfDay int
	coin      int
	entry     int
	fallback  int // secondary price column used when entry is blank
}

func resolveColumns(header []string) (*columns, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	get := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	cols := &columns{
		timestamp: get("timestamp_utc", "timestamp"),
		date:      get("date"),
		timeOfDay: get("time"),
		coin:      get("coin", "coin_name"),
		entry:     get("entry", "cmp"),
		fallback:  get("sl"),
	}

	if cols.coin < 0 {
		return nil, fmt.Errorf("signals: header missing coin column: %v", header)
	}
	if cols.entry < 0 {
		return nil, fmt.Errorf("signals: header missing price column: %v", header)
	}
	if cols.timestamp < 0 && (cols.date < 0 || cols.timeOfDay < 0) {
		return nil, fmt.Errorf("signals: header missing timestamp column: %v", header)
	}
	return cols, nil
}

func (c *columns) parse(record []string) (domain.Signal, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	ts, err := c.parseTimestamp(field)
	if err != nil {
		return domain.Signal{}, err
	}

	coin := strings.ToUpper(field(c.coin))
	if coin == "" {
		return domain.Signal{}, fmt.Errorf("empty coin")
	}

	raw := field(c.entry)
	if raw == "" {
		raw = field(c.fallback)
	}
	if raw == "" {
		return domain.Signal{}, fmt.Errorf("empty price for %s", coin)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if price <= 0 {
		return domain.Signal{}, fmt.Errorf("non-positive price %v for %s", price, coin)
	}

	return domain.Signal{Timestamp: ts, Coin: coin, EntryPrice: price}, nil
}

func (c *columns) parseTimestamp(field func(int) string) (time.Time, error) {
	raw := field(c.timestamp)
	if raw == "" && c.date >= 0 {
		raw = strings.TrimSpace(field(c.date) + " " + field(c.timeOfDay))
	}
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
