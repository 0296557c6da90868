package blobstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by FaultyStore.
var ErrInjected = errors.New("blobstore: injected fault")

// Fault defines specific failure behavior.
type Fault struct {
	FailOpen bool
	FailPut  bool
	// FailReadAfter fails reads from an opened blob once this many reads
	// succeeded. -1 disables.
	FailReadAfter int
	Err           error
}

// FaultyStore is a BlobStore wrapper that injects errors for blobs whose
// name contains a rule's pattern. It is meant for tests.
type FaultyStore struct {
	BlobStore

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyStore wraps store.
func NewFaultyStore(store BlobStore) *FaultyStore {
	return &FaultyStore{
		BlobStore: store,
		rules:     make(map[string]Fault),
	}
}

// AddRule adds a fault injection rule for names containing pattern.
func (f *FaultyStore) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[pattern] = fault
}

func (f *FaultyStore) fault(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyStore) Open(ctx context.Context, name string) (Blob, error) {
	fault, ok := f.fault(name)
	if ok && fault.FailOpen {
		return nil, fault.Err
	}
	b, err := f.BlobStore.Open(ctx, name)
	if err != nil || !ok || fault.FailReadAfter < 0 {
		return b, err
	}
	return &faultyBlob{Blob: b, fault: fault}, nil
}

func (f *FaultyStore) Put(ctx context.Context, name string, data []byte) error {
	if fault, ok := f.fault(name); ok && fault.FailPut {
		return fault.Err
	}
	return f.BlobStore.Put(ctx, name, data)
}

func (f *FaultyStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if fault, ok := f.fault(name); ok && fault.FailPut {
		return nil, fault.Err
	}
	return f.BlobStore.Create(ctx, name)
}

type faultyBlob struct {
	Blob
	fault Fault

	mu    sync.Mutex
	reads int
}

func (b *faultyBlob) tick() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reads >= b.fault.FailReadAfter {
		return b.fault.Err
	}
	b.reads++
	return nil
}

func (b *faultyBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.tick(); err != nil {
		return 0, err
	}
	return b.Blob.ReadAt(ctx, p, off)
}
