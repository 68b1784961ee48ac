package allocation

import (
	"sync"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// TraceRecorder is the write-only sink every pipeline stage reports decisions to
type TraceRecorder interface {
	Record(entry entities.DecisionTraceEntry)
}

// TraceLog is the engine-wide, append-only decision trace of a run, keyed by product.
// Products commit their entries in one step so a product's trace is never interleaved
// with another's.
type TraceLog struct {
	mu        sync.RWMutex
	order     []entities.ProductID
	byProduct map[entities.ProductID][]entities.DecisionTraceEntry
}

// NewTraceLog creates an empty trace log
func NewTraceLog() *TraceLog {
	return &TraceLog{
		byProduct: make(map[entities.ProductID][]entities.DecisionTraceEntry),
	}
}

// commit appends a product's buffered entries
func (l *TraceLog) commit(productID entities.ProductID, entries []entities.DecisionTraceEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byProduct[productID]; !ok {
		l.order = append(l.order, productID)
	}
	l.byProduct[productID] = append(l.byProduct[productID], entries...)
}

// ForProduct returns a copy of the entries recorded for a product
func (l *TraceLog) ForProduct(productID entities.ProductID) []entities.DecisionTraceEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.byProduct[productID]
	out := make([]entities.DecisionTraceEntry, len(entries))
	copy(out, entries)
	return out
}

// Products returns product ids in the order their traces were committed
func (l *TraceLog) Products() []entities.ProductID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entities.ProductID, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the total number of entries
func (l *TraceLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, entries := range l.byProduct {
		n += len(entries)
	}
	return n
}

// traceBuffer collects one product's entries until the pipeline finishes
type traceBuffer struct {
	productID entities.ProductID
	entries   []entities.DecisionTraceEntry
}

func newTraceBuffer(productID entities.ProductID) *traceBuffer {
	return &traceBuffer{productID: productID}
}

// Record implements TraceRecorder
func (b *traceBuffer) Record(entry entities.DecisionTraceEntry) {
	entry.ProductID = b.productID
	b.entries = append(b.entries, entry)
}

func (b *traceBuffer) reset() {
	b.entries = b.entries[:0]
}
