package services

import (
	"fmt"
	"testing"
	"time"
)

func TestGeocodeCachePutGet(t *testing.T) {
	c := NewGeocodeCache()

	if _, ok := c.Get(52.3676, 4.9041); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.Put(52.3676, 4.9041, "Amsterdam Centrum")
	label, ok := c.Get(52.3676, 4.9041)
	if !ok || label != "Amsterdam Centrum" {
		t.Errorf("Get = (%q, %v), want cached label", label, ok)
	}

	// Keys quantize to three decimals, so nearby fixes share an entry.
	if label, ok := c.Get(52.36762, 4.90409); !ok || label != "Amsterdam Centrum" {
		t.Errorf("nearby coordinate missed the quantized entry: (%q, %v)", label, ok)
	}

	// A different cell is a miss.
	if _, ok := c.Get(52.40, 4.90); ok {
		t.Error("distinct cell returned a hit")
	}
}

func TestGeocodeCacheExpiry(t *testing.T) {
	c := NewGeocodeCache()
	c.ttl = 10 * time.Millisecond

	c.Put(52.0, 4.0, "Somewhere")
	if _, ok := c.Get(52.0, 4.0); !ok {
		t.Fatal("fresh entry missed")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(52.0, 4.0); ok {
		t.Error("expired entry served")
	}
}

func TestGeocodeCacheEviction(t *testing.T) {
	c := NewGeocodeCache()
	c.maxEntries = 5

	for i := 0; i < 7; i++ {
		c.Put(float64(i), 0, fmt.Sprintf("label-%d", i))
	}
	if got := c.Len(); got > 5 {
		t.Errorf("Len = %d, want at most maxEntries 5", got)
	}
	// The most recent entry always survives eviction.
	if _, ok := c.Get(6, 0); !ok {
		t.Error("most recent entry evicted")
	}
}
