package sink

import (
	"log"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/observable"
	"github.com/nhle/erp-sync/internal/sync"
)

// State is the published value of one view.
type State[T any] struct {
	// Items is the role-filtered collection. It is never nil.
	Items []T

	// Err is the last listener failure, cleared by the next good snapshot.
	// After a permission failure Items is empty; after a transient one it
	// holds the last good data.
	Err *sync.SyncError

	// Loaded is false until the first result for the view has arrived.
	Loaded bool
}

// refresher is implemented by every binding so the sink can re-filter all
// of them on an identity change.
type refresher interface {
	refresh(id *model.Identity)
}

// binding connects one registry subscription to one published view.
type binding[T any] struct {
	name   string
	sub    *sync.Subscription
	decode model.Decoder[T]
	filter func(items []T, id *model.Identity) []T
	fixup  func(*T)
	logger *log.Logger

	raw    []T
	err    *sync.SyncError
	loaded bool

	out *observable.Value[State[T]]
}

func newBinding[T any](name string, sub *sync.Subscription, decode model.Decoder[T], filter func([]T, *model.Identity) []T, logger *log.Logger) *binding[T] {
	return &binding[T]{
		name:   name,
		sub:    sub,
		decode: decode,
		filter: filter,
		logger: logger,
		out:    observable.NewWith(State[T]{Items: []T{}}),
	}
}

// ingest replaces the raw data with a registry result. The caller holds
// the sink lock.
func (b *binding[T]) ingest(res sync.Result) {
	b.loaded = true
	b.err = res.Err

	if res.Err != nil && res.Err.Kind == sync.PermissionDenied {
		b.raw = nil
		return
	}

	ids, fields := res.Snapshot.Split()
	items, errs := model.DecodeAll(b.decode, ids, fields)
	for _, err := range errs {
		b.logger.Printf("sink: %s: dropping record: %v", b.name, err)
	}
	if b.fixup != nil {
		for i := range items {
			b.fixup(&items[i])
		}
	}
	b.raw = items
}

// refresh publishes the raw data filtered for id. The caller holds the
// sink lock.
func (b *binding[T]) refresh(id *model.Identity) {
	items := b.filter(b.raw, id)
	if items == nil {
		items = []T{}
	}
	b.out.Set(State[T]{Items: items, Err: b.err, Loaded: b.loaded})
}
