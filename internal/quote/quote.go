// Package quote exposes top-of-book market data to the engine. The real feed
// is owned by a separate process; this package defines the read contract and
// an in-memory source fed by whatever transport delivers quotes.
package quote

import (
	"sync"

	"github.com/shopspring/decimal"
)

// TopOfBook is the best visible market for one symbol.
type TopOfBook struct {
	LastTradePx decimal.Decimal `json:"last_trade_px"`
	BidPx       decimal.Decimal `json:"bid_px"`
	AskPx       decimal.Decimal `json:"ask_px"`
}

// Source supplies the current top-of-book for a symbol. A false return means
// no quote is available right now.
type Source interface {
	TopOfBook(symbol string) (TopOfBook, bool)
}

// MemorySource is a Source backed by an in-memory table, updated by the quote
// transport and read by the engine without further locking concerns.
type MemorySource struct {
	mu    sync.RWMutex
	books map[string]TopOfBook
}

// NewMemorySource creates an empty in-memory quote source.
func NewMemorySource() *MemorySource {
	return &MemorySource{books: make(map[string]TopOfBook)}
}

// Set installs the current top-of-book for a symbol.
func (s *MemorySource) Set(symbol string, tob TopOfBook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[symbol] = tob
}

func (s *MemorySource) TopOfBook(symbol string) (TopOfBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tob, ok := s.books[symbol]
	return tob, ok
}
