// Package addrcache maps a device instance to the network address it
// was last heard from, the binding I-Am/I-Have resolve and client
// reads before sending a confirmed request to an instance rather than
// a known address.
package addrcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/greenridge/bacstack/transport"
)

// Binding is one resolved device instance: its address plus the
// capability negotiated from its I-Am (clause 16.10).
type Binding struct {
	Address               transport.Address
	MaxAPDULength         uint32
	SegmentationSupported uint32
	VendorIdentifier      uint32
	LastSeen              time.Time
}

// Cache is a bounded LRU of device-instance bindings; eviction under
// pressure is acceptable since a stale binding just costs one more
// Who-Is round trip.
type Cache struct {
	lru *lru.Cache[uint32, Binding]
}

// New builds a Cache holding at most size bindings.
func New(size int) (*Cache, error) {
	l, err := lru.New[uint32, Binding](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Update records or refreshes the binding for instance, called from
// the I-Am and I-Have handlers.
func (c *Cache) Update(instance uint32, addr transport.Address, maxAPDULength, segmentationSupported, vendorIdentifier uint32) {
	c.lru.Add(instance, Binding{
		Address:               addr,
		MaxAPDULength:         maxAPDULength,
		SegmentationSupported: segmentationSupported,
		VendorIdentifier:      vendorIdentifier,
		LastSeen:              time.Now(),
	})
}

// Lookup resolves instance to its last-known binding.
func (c *Cache) Lookup(instance uint32) (Binding, bool) {
	return c.lru.Get(instance)
}

// Forget drops instance's binding, e.g. after a request to it times
// out every retry — the address may no longer be valid.
func (c *Cache) Forget(instance uint32) {
	c.lru.Remove(instance)
}

// Len reports the current binding count.
func (c *Cache) Len() int { return c.lru.Len() }

// Instances returns every device instance currently bound, from least
// to most recently used, for callers that want to enumerate
// everything discovered so far (e.g. a Who-Is scan's results).
func (c *Cache) Instances() []uint32 { return c.lru.Keys() }
