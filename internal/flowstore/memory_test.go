package flowstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	if err := s.Set(ctx, "f1", "a", []byte(`"hello"`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := s.Get(ctx, "f1", "a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(val) != `"hello"` {
		t.Fatalf("unexpected value %q", val)
	}
}

func TestMemoryStoreGetAbsent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	_, ok, err := s.Get(context.Background(), "f1", "missing")
	if err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()
	if err := s.Set(ctx, "f1", "a", []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	_, ok, err := s.Get(ctx, "f1", "a")
	if err != nil || ok {
		t.Fatalf("expected expired key to read as absent, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	s.Set(ctx, "f1", "a", []byte("1"))
	if err := s.Delete(ctx, "f1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "f1", "a"); ok {
		t.Fatal("expected key gone after delete")
	}
}

func TestMemoryStoreIncrementLinearizable(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Increment(ctx, "f1", "counter"); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	val, ok, err := s.Get(ctx, "f1", "counter")
	if err != nil || !ok {
		t.Fatalf("get after increments: ok=%v err=%v", ok, err)
	}
	if string(val) != "200" {
		t.Fatalf("expected 200 increments to yield 200, got %s", val)
	}
}

func TestMemoryStoreSetTTLRewritesAllKeysUnderFlow(t *testing.T) {
	s := NewMemoryStore(5 * time.Millisecond)
	ctx := context.Background()
	s.Set(ctx, "f1", "a", []byte("1"))
	s.Set(ctx, "f1", "b", []byte("2"))

	if err := s.SetTTL(ctx, "f1", 1); err != nil {
		t.Fatalf("set ttl: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "f1", "a"); !ok {
		t.Fatal("expected key a to survive past its original short TTL after SetTTL extended it")
	}
	if _, ok, _ := s.Get(ctx, "f1", "b"); !ok {
		t.Fatal("expected key b to survive past its original short TTL after SetTTL extended it")
	}
}

func TestNoopStoreAlwaysAbsentAndIncrementsFromZero(t *testing.T) {
	s := NewNoopStore()
	ctx := context.Background()
	s.Set(ctx, "f1", "a", []byte("1"))
	if _, ok, _ := s.Get(ctx, "f1", "a"); ok {
		t.Fatal("noop store must never retain values")
	}
	n, err := s.Increment(ctx, "f1", "a")
	if err != nil || n != 1 {
		t.Fatalf("expected noop increment to always return 1, got %d err=%v", n, err)
	}
}
