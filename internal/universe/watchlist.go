// Package universe manages the ticker watchlist the engine scans each cycle.
package universe

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTickers seeds a new watchlist on first run.
var DefaultTickers = []string{
	"NVDA", "AMD", "SMCI", "AVGO", "MRVL",
	"TSLA", "RIVN", "PLTR", "CRWD", "NET",
	"DDOG", "ANET", "PANW", "COIN", "MSTR",
}

type watchlistFile struct {
	Tickers []string `yaml:"tickers"`
}

// Watchlist is an ordered, deduplicated set of ticker symbols backed by a
// YAML file. Not safe for concurrent use.
type Watchlist struct {
	path    string
	tickers []string
}

// Load reads the watchlist at path, seeding it with DefaultTickers when the
// file does not exist yet.
func Load(path string) (*Watchlist, error) {
	w := &Watchlist{path: path}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		w.tickers = append(w.tickers, DefaultTickers...)
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var file watchlistFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	for _, ticker := range file.Tickers {
		w.add(ticker)
	}
	if len(w.tickers) == 0 {
		w.tickers = append(w.tickers, DefaultTickers...)
	}
	return w, nil
}

// Save writes the current list back to disk.
func (w *Watchlist) Save() error {
	out, err := yaml.Marshal(watchlistFile{Tickers: w.tickers})
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	if err := os.WriteFile(w.path, out, 0o644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return nil
}

// Tickers returns the symbols in watchlist order.
func (w *Watchlist) Tickers() []string {
	out := make([]string, len(w.tickers))
	copy(out, w.tickers)
	return out
}

// Contains reports whether ticker is on the list.
func (w *Watchlist) Contains(ticker string) bool {
	ticker = normalize(ticker)
	for _, t := range w.tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// Add appends ticker if absent. Reports whether the list changed.
func (w *Watchlist) Add(ticker string) bool {
	return w.add(ticker)
}

func (w *Watchlist) add(ticker string) bool {
	ticker = normalize(ticker)
	if ticker == "" || w.Contains(ticker) {
		return false
	}
	w.tickers = append(w.tickers, ticker)
	return true
}

// Remove drops ticker from the list. Reports whether the list changed.
func (w *Watchlist) Remove(ticker string) bool {
	ticker = normalize(ticker)
	for i, t := range w.tickers {
		if t == ticker {
			w.tickers = append(w.tickers[:i], w.tickers[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of symbols.
func (w *Watchlist) Len() int {
	return len(w.tickers)
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
