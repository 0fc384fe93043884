// Package data supplies daily bar histories to the backtest engine and the
// calibration trainer.
package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// ErrSymbolNotFound is returned when a source has no history for a symbol
var ErrSymbolNotFound = errors.New("symbol not found")

// BarSource provides the full ascending daily history of a symbol
type BarSource interface {
	Bars(ctx context.Context, symbol string) (market.Series, error)
}

// Lister is implemented by sources that can enumerate their universe
type Lister interface {
	Symbols(ctx context.Context) ([]string, error)
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// MemorySource serves bars held in memory
type MemorySource struct {
	mu   sync.RWMutex
	bars map[string]market.Series
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{bars: make(map[string]market.Series)}
}

// Put stores a history, replacing any previous one
func (m *MemorySource) Put(symbol string, bars market.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[NormalizeSymbol(symbol)] = bars
}

// Bars returns a copy of the stored history
func (m *MemorySource) Bars(ctx context.Context, symbol string) (market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	bars, ok := m.bars[NormalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	out := make(market.Series, len(bars))
	copy(out, bars)
	return out, nil
}

// Symbols lists stored symbols in sorted order
func (m *MemorySource) Symbols(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.bars))
	for s := range m.bars {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
