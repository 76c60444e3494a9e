package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/queryir"
	"github.com/roach88/actionstore/internal/querymem"
)

// Primitive names recorded by FakeBackend.
const (
	CallSerialize   = "Serialize"
	CallDeserialize = "Deserialize"
	CallCreate      = "Create"
	CallCreateMany  = "CreateMany"
	CallFindByID    = "FindByID"
	CallFindMany    = "FindMany"
)

// FakeRecord is the FakeBackend's native record: an id and the encoded
// document.
type FakeRecord struct {
	ID  string
	Doc []byte
}

// FakeBackend is an in-memory engine.Storable that counts calls per
// primitive and can be told to misbehave.
//
// Thread-safety: All methods are safe for concurrent use.
type FakeBackend struct {
	// ReorderBatches makes later Serialize/Deserialize calls finish before
	// earlier ones, so concurrent batch work completes out of order.
	ReorderBatches bool

	// DropFromBatch makes CreateMany return this many fewer records than it
	// was given.
	DropFromBatch int

	// Err, when set, is returned by every storage primitive.
	Err error

	mu      sync.Mutex
	records map[string]FakeRecord
	calls   map[string]int
	seq     atomic.Int64
}

var (
	_ engine.Storable[FakeRecord] = (*FakeBackend)(nil)
	_ engine.Named                = (*FakeBackend)(nil)
)

// NewFakeBackend creates an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		records: make(map[string]FakeRecord),
		calls:   make(map[string]int),
	}
}

// Name identifies the backend in logs and metrics.
func (f *FakeBackend) Name() string { return "fake" }

// Calls returns how many times primitive was invoked.
func (f *FakeBackend) Calls(primitive string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[primitive]
}

// TotalCalls returns the number of primitive invocations of any kind.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeBackend) record(primitive string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[primitive]++
}

// stall delays the n-th call less than the ones before it.
func (f *FakeBackend) stall() {
	if !f.ReorderBatches {
		return
	}
	n := f.seq.Add(1)
	if d := 20*time.Millisecond - time.Duration(n)*time.Millisecond; d > 0 {
		time.Sleep(d)
	}
}

func (f *FakeBackend) Serialize(_ context.Context, a action.Action) (FakeRecord, error) {
	f.record(CallSerialize)
	f.stall()
	id, doc, err := action.EncodeDocument(a)
	if err != nil {
		return FakeRecord{}, err
	}
	return FakeRecord{ID: id, Doc: doc}, nil
}

func (f *FakeBackend) Deserialize(_ context.Context, rec FakeRecord) (action.Action, error) {
	f.record(CallDeserialize)
	f.stall()
	return action.DecodeDocument(rec.ID, rec.Doc)
}

func (f *FakeBackend) Create(_ context.Context, rec FakeRecord) (FakeRecord, error) {
	f.record(CallCreate)
	if f.Err != nil {
		return FakeRecord{}, f.Err
	}
	return f.insert(rec), nil
}

func (f *FakeBackend) CreateMany(_ context.Context, recs []FakeRecord) ([]FakeRecord, error) {
	f.record(CallCreateMany)
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]FakeRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, f.insert(rec))
	}
	if f.DropFromBatch > 0 {
		out = out[:max(0, len(out)-f.DropFromBatch)]
	}
	return out, nil
}

func (f *FakeBackend) insert(rec FakeRecord) FakeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = engine.UUIDv7Generator{}.Generate()
	}
	if existing, ok := f.records[rec.ID]; ok {
		return existing
	}
	f.records[rec.ID] = rec
	return rec
}

func (f *FakeBackend) FindByID(_ context.Context, id string) (FakeRecord, error) {
	f.record(CallFindByID)
	if f.Err != nil {
		return FakeRecord{}, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return FakeRecord{}, engine.NotFound(id)
	}
	return rec, nil
}

func (f *FakeBackend) FindMany(_ context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]FakeRecord, error) {
	f.record(CallFindMany)
	if f.Err != nil {
		return nil, f.Err
	}

	f.mu.Lock()
	docs := make([]action.Object, 0, len(f.records))
	for _, rec := range f.records {
		v, err := action.UnmarshalValue(rec.Doc)
		if err != nil {
			f.mu.Unlock()
			return nil, fmt.Errorf("fake find many: %w", err)
		}
		obj, ok := v.(action.Object)
		if !ok {
			f.mu.Unlock()
			return nil, fmt.Errorf("fake find many: record %q is not an object", rec.ID)
		}
		obj["id"] = action.String(rec.ID)
		docs = append(docs, obj)
	}
	f.mu.Unlock()

	matched, err := querymem.Run(queryir.Build(opts, filters), docs)
	if err != nil {
		return nil, err
	}
	out := make([]FakeRecord, len(matched))
	for i, doc := range matched {
		id, body, err := splitID(doc)
		if err != nil {
			return nil, err
		}
		out[i] = FakeRecord{ID: id, Doc: body}
	}
	return out, nil
}

func splitID(doc action.Object) (string, []byte, error) {
	id, _ := doc["id"].(action.String)
	rest := make(action.Object, len(doc))
	for k, v := range doc {
		if k != "id" {
			rest[k] = v
		}
	}
	body, err := rest.MarshalJSON()
	return string(id), body, err
}
