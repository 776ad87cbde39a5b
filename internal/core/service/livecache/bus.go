package livecache

import (
	"sync"

	"github.com/google/uuid"

	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
)

// bus fans price events out to per-symbol and wildcard subscribers.
// Handlers are invoked synchronously on the publisher's goroutine, which
// keeps per-symbol delivery ordered; handlers must be cheap.
type bus struct {
	mu          sync.RWMutex
	updateSubs  map[string]map[string]port.UpdateHandler
	sigSubs     map[string]map[string]port.SignificantChangeHandler
	subBySymbol map[string]subRef
}

type subRef struct {
	symbol      string
	significant bool
}

func newBus() *bus {
	return &bus{
		updateSubs:  make(map[string]map[string]port.UpdateHandler),
		sigSubs:     make(map[string]map[string]port.SignificantChangeHandler),
		subBySymbol: make(map[string]subRef),
	}
}

func (b *bus) subscribeUpdates(symbol string, handler port.UpdateHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if _, ok := b.updateSubs[symbol]; !ok {
		b.updateSubs[symbol] = make(map[string]port.UpdateHandler)
	}
	b.updateSubs[symbol][id] = handler
	b.subBySymbol[id] = subRef{symbol: symbol}
	return id
}

func (b *bus) subscribeSignificant(symbol string, handler port.SignificantChangeHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if _, ok := b.sigSubs[symbol]; !ok {
		b.sigSubs[symbol] = make(map[string]port.SignificantChangeHandler)
	}
	b.sigSubs[symbol][id] = handler
	b.subBySymbol[id] = subRef{symbol: symbol, significant: true}
	return id
}

func (b *bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ref, ok := b.subBySymbol[id]
	if !ok {
		return
	}
	delete(b.subBySymbol, id)

	if ref.significant {
		if subs, ok := b.sigSubs[ref.symbol]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.sigSubs, ref.symbol)
			}
		}
		return
	}
	if subs, ok := b.updateSubs[ref.symbol]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.updateSubs, ref.symbol)
		}
	}
}

func (b *bus) publishUpdate(update domain.LivePriceUpdate) {
	b.mu.RLock()
	handlers := make([]port.UpdateHandler, 0, 4)
	for _, h := range b.updateSubs[update.Symbol] {
		handlers = append(handlers, h)
	}
	for _, h := range b.updateSubs[port.SymbolAll] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(update)
	}
}

func (b *bus) publishSignificant(change domain.SignificantChange) {
	b.mu.RLock()
	handlers := make([]port.SignificantChangeHandler, 0, 4)
	for _, h := range b.sigSubs[change.Symbol] {
		handlers = append(handlers, h)
	}
	for _, h := range b.sigSubs[port.SymbolAll] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(change)
	}
}
