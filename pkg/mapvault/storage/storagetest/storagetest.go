// Package storagetest provides content-store helpers for tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
)

// Op is one recorded store call.
type Op struct {
	Method string // "Get" or "Set"
	Kind   storage.Kind
	Key    string
}

func (o Op) String() string {
	return fmt.Sprintf("%s %s/%s", o.Method, o.Kind, o.Key)
}

// Recorder wraps a ContentStore, logs every Get and Set and lets tests inject
// failures per (kind, key).
type Recorder struct {
	storage.ContentStore

	mu       sync.Mutex
	ops      []Op
	failGet  map[string]error
	failSet  map[string]error
	blockGet chan struct{}
}

// NewMemory returns a Recorder over an in-memory bucket, closed on cleanup.
func NewMemory(t testing.TB) *Recorder {
	t.Helper()
	s, err := storage.NewBucketStore(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return Wrap(s)
}

func Wrap(s storage.ContentStore) *Recorder {
	return &Recorder{
		ContentStore: s,
		failGet:      make(map[string]error),
		failSet:      make(map[string]error),
	}
}

func opKey(kind storage.Kind, key string) string {
	return string(kind) + "/" + key
}

// FailGet makes Get(kind, key) return err. A nil err clears the failure.
func (r *Recorder) FailGet(kind storage.Kind, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failGet, opKey(kind, key))
		return
	}
	r.failGet[opKey(kind, key)] = err
}

// FailSet makes Set(kind, key) return err.
func (r *Recorder) FailSet(kind storage.Kind, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSet[opKey(kind, key)] = err
}

// BlockGets makes every Get wait until the returned release func is called.
func (r *Recorder) BlockGets() (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.blockGet = ch
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.blockGet = nil
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Recorder) Get(ctx context.Context, kind storage.Kind, key string) ([]byte, error) {
	r.mu.Lock()
	r.ops = append(r.ops, Op{Method: "Get", Kind: kind, Key: key})
	err := r.failGet[opKey(kind, key)]
	block := r.blockGet
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return r.ContentStore.Get(ctx, kind, key)
}

func (r *Recorder) Set(ctx context.Context, kind storage.Kind, key string, value []byte) error {
	r.mu.Lock()
	r.ops = append(r.ops, Op{Method: "Set", Kind: kind, Key: key})
	err := r.failSet[opKey(kind, key)]
	r.mu.Unlock()

	if err != nil {
		return err
	}
	return r.ContentStore.Set(ctx, kind, key, value)
}

// Ops returns the recorded calls filtered by method ("" for all).
func (r *Recorder) Ops(method string) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Op
	for _, op := range r.ops {
		if method == "" || op.Method == method {
			out = append(out, op)
		}
	}
	return out
}

// Gets counts Get calls for (kind, key).
func (r *Recorder) Gets(kind storage.Kind, key string) int {
	n := 0
	for _, op := range r.Ops("Get") {
		if op.Kind == kind && op.Key == key {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}
