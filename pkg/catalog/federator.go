package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/protocol"
)

// DefaultBatchSize is the page size requested from each server when the
// caller passes a non-positive batch size.
const DefaultBatchSize = 50

// Federator merges paginated search results across servers. It is not safe
// for concurrent use.
type Federator struct {
	servers []protocol.Server
	logger  *log.Logger

	term    string
	started bool
	server  int // index into servers of the server being paged
	page    int // next page to request from servers[server]
	buf     []protocol.CatalogItem
	seen    map[string]struct{}
	done    bool
}

// New returns a Federator over servers, in the given order.
func New(servers []protocol.Server, logger *log.Logger) *Federator {
	if logger == nil {
		logger = log.Default()
	}
	f := &Federator{servers: servers, logger: logger}
	f.Reset()
	return f
}

// Reset forgets the enumeration position and the names already yielded.
func (f *Federator) Reset() {
	f.started = false
	f.term = ""
	f.server = 0
	f.page = 1
	f.buf = nil
	f.seen = make(map[string]struct{})
	f.done = false
}

// Exhausted reports whether every server has been paged to the end.
func (f *Federator) Exhausted() bool {
	return f.done && len(f.buf) == 0
}

// Search returns up to maxTotal new distinct items for term. A maxTotal of
// zero or less drains every remaining page. Items already returned by an
// earlier call are never returned again until Reset or a new term.
//
// A server whose search fails is logged and skipped for the rest of the
// enumeration. Context cancellation aborts the call; the items collected so
// far are returned with the error.
func (f *Federator) Search(ctx context.Context, term string, maxTotal, batchSize int) ([]protocol.CatalogItem, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if f.started && term != f.term {
		f.Reset()
	}
	f.started = true
	f.term = term

	var out []protocol.CatalogItem
	for maxTotal <= 0 || len(out) < maxTotal {
		if len(f.buf) == 0 {
			if f.done {
				break
			}
			if err := f.fill(ctx, batchSize); err != nil {
				return out, err
			}
			continue
		}

		item := f.buf[0]
		f.buf = f.buf[1:]
		key := strings.ToLower(item.Name)
		if _, ok := f.seen[key]; ok {
			continue
		}
		f.seen[key] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

// fill loads the next page into the buffer, advancing to the next
// connected server when the current one has no more pages.
func (f *Federator) fill(ctx context.Context, batchSize int) error {
	for f.server < len(f.servers) {
		if err := ctx.Err(); err != nil {
			return err
		}
		srv := f.servers[f.server]
		if !srv.Connected() {
			f.logger.Debug("skipping disconnected server", "server", srv.Name())
			f.next()
			continue
		}

		items, more, err := srv.Search(ctx, f.term, f.page, batchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			f.logger.Warn("search failed", "server", srv.Name(), "page", f.page, "err", err)
			f.next()
			continue
		}
		for i := range items {
			if items[i].Server == nil {
				items[i].Server = srv
			}
		}

		f.page++
		if !more {
			f.next()
		}
		if len(items) > 0 {
			f.buf = items
			return nil
		}
	}
	f.done = true
	return nil
}

func (f *Federator) next() {
	f.server++
	f.page = 1
}
