package daybook

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// Directory answers master data questions while vouchers are transformed
type Directory interface {
	// PartyKind reports whether name is a supplier or customer.
	// Supplier wins when a party is both.
	PartyKind(ctx context.Context, name string) (ledger.PartyKind, bool, error)

	// StockUOM returns the stock unit of an item
	StockUOM(ctx context.Context, itemCode string) (string, bool, error)
}

// BundleDirectory answers from processed master records, for offline runs
type BundleDirectory struct {
	parties map[string]ledger.PartyKind
	uoms    map[string]string
}

// NewBundleDirectory indexes the parties and items of a master bundle
func NewBundleDirectory(records []ledger.Record) *BundleDirectory {
	d := &BundleDirectory{
		parties: make(map[string]ledger.PartyKind),
		uoms:    make(map[string]string),
	}
	for _, r := range records {
		switch {
		case r.Kind == ledger.KindParty && r.Party != nil:
			if existing, ok := d.parties[r.Party.Name]; !ok || existing != ledger.PartySupplier {
				d.parties[r.Party.Name] = r.Party.Kind
			}
		case r.Kind == ledger.KindItem && r.Item != nil:
			d.uoms[r.Item.Code] = r.Item.StockUOM
		}
	}
	return d
}

func (d *BundleDirectory) PartyKind(_ context.Context, name string) (ledger.PartyKind, bool, error) {
	kind, ok := d.parties[name]
	return kind, ok, nil
}

func (d *BundleDirectory) StockUOM(_ context.Context, itemCode string) (string, bool, error) {
	uom, ok := d.uoms[itemCode]
	return uom, ok, nil
}

// DefaultDirectoryTTL is how long CachedDirectory keeps answers
const DefaultDirectoryTTL = 30 * time.Minute

type cachedAnswer struct {
	value string
	found bool
}

// CachedDirectory is a read-through cache in front of another Directory.
// Misses are cached too: masters do not change while a stage runs.
type CachedDirectory struct {
	inner Directory
	cache *cache.Cache
}

// NewCachedDirectory wraps inner with an in-memory cache
func NewCachedDirectory(inner Directory, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = DefaultDirectoryTTL
	}
	return &CachedDirectory{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (d *CachedDirectory) PartyKind(ctx context.Context, name string) (ledger.PartyKind, bool, error) {
	key := "party:" + name
	if v, ok := d.cache.Get(key); ok {
		a := v.(cachedAnswer)
		return ledger.PartyKind(a.value), a.found, nil
	}

	kind, found, err := d.inner.PartyKind(ctx, name)
	if err != nil {
		return "", false, err
	}
	d.cache.SetDefault(key, cachedAnswer{value: string(kind), found: found})
	return kind, found, nil
}

func (d *CachedDirectory) StockUOM(ctx context.Context, itemCode string) (string, bool, error) {
	key := "uom:" + itemCode
	if v, ok := d.cache.Get(key); ok {
		a := v.(cachedAnswer)
		return a.value, a.found, nil
	}

	uom, found, err := d.inner.StockUOM(ctx, itemCode)
	if err != nil {
		return "", false, err
	}
	d.cache.SetDefault(key, cachedAnswer{value: uom, found: found})
	return uom, found, nil
}

// Flush drops every cached answer
func (d *CachedDirectory) Flush() {
	d.cache.Flush()
}
