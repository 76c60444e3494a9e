package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/queryir"
	"github.com/roach88/actionstore/internal/querymem"
)

// Record is the Redis backend's native record.
type Record struct {
	ID        string
	CompanyID string
	Score     float64 // timestamp in unix milliseconds, 0 when unparsable
	Doc       string  // JSON document without id
}

var (
	_ engine.Storable[Record] = (*Store)(nil)
	_ engine.Named            = (*Store)(nil)
)

// insertScript stores each document unless its key exists, indexes the
// new ones, and returns the stored document for every input.
//
// KEYS come in triples (action, company index, global index); ARGV in
// triples (doc, score, id).
var insertScript = goredis.NewScript(`
local out = {}
for i = 1, #KEYS, 3 do
  if redis.call('SETNX', KEYS[i], ARGV[i]) == 1 then
    redis.call('ZADD', KEYS[i+1], ARGV[i+1], ARGV[i+2])
    redis.call('ZADD', KEYS[i+2], ARGV[i+1], ARGV[i+2])
  end
  out[#out+1] = redis.call('GET', KEYS[i])
end
return out
`)

// Serialize converts an action to a Record. An empty id stays empty until
// Create assigns one.
func (s *Store) Serialize(_ context.Context, a action.Action) (Record, error) {
	id, doc, err := action.EncodeDocument(a)
	if err != nil {
		return Record{}, fmt.Errorf("serialize: %w", err)
	}
	return Record{ID: id, CompanyID: a.CompanyID, Score: score(a.Timestamp), Doc: string(doc)}, nil
}

// Deserialize converts a Record back to an action.
func (s *Store) Deserialize(_ context.Context, rec Record) (action.Action, error) {
	a, err := action.DecodeDocument(rec.ID, []byte(rec.Doc))
	if err != nil {
		return action.Action{}, fmt.Errorf("deserialize %q: %w", rec.ID, err)
	}
	return a, nil
}

// Create stores rec, assigning an id when it has none. A duplicate id
// returns the record already stored under it.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	out, err := s.insert(ctx, []Record{rec})
	if err != nil {
		return Record{}, fmt.Errorf("create: %w", err)
	}
	return out[0], nil
}

// CreateMany stores recs atomically and returns them in input order.
func (s *Store) CreateMany(ctx context.Context, recs []Record) ([]Record, error) {
	if len(recs) == 0 {
		return []Record{}, nil
	}
	out, err := s.insert(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("create many: %w", err)
	}
	s.logger.Trace("inserted records", "count", len(out))
	return out, nil
}

func (s *Store) insert(ctx context.Context, recs []Record) ([]Record, error) {
	keys := make([]string, 0, 3*len(recs))
	args := make([]any, 0, 3*len(recs))
	for i := range recs {
		if recs[i].ID == "" {
			recs[i].ID = s.ids.Generate()
		}
		r := recs[i]
		keys = append(keys, s.actionKey(r.ID), s.companyKey(r.CompanyID), s.allKey())
		args = append(args, r.Doc, strconv.FormatFloat(r.Score, 'f', -1, 64), r.ID)
	}

	docs, err := insertScript.Run(ctx, s.client, keys, args...).StringSlice()
	if err != nil {
		return nil, err
	}
	if len(docs) != len(recs) {
		return nil, fmt.Errorf("insert script returned %d documents for %d records", len(docs), len(recs))
	}

	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r
		out[i].Doc = docs[i]
	}
	return out, nil
}

// FindByID returns the record stored under id, or an error wrapping
// engine.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (Record, error) {
	doc, err := s.client.Get(ctx, s.actionKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return Record{}, engine.NotFound(id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("find by id: %w", err)
	}
	return Record{ID: id, Doc: doc}, nil
}

// FindMany returns the records matching filters, ordered and paged by opts.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FindMany(ctx context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]Record, error) {
	ids, err := s.candidates(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("find many: %w", err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.actionKey(id)
	}
	loaded, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("find many: mget: %w", err)
	}

	docs := make([]action.Object, 0, len(loaded))
	for i, raw := range loaded {
		text, ok := raw.(string)
		if !ok {
			s.logger.Warn("index references a missing document", "id", ids[i])
			continue
		}
		obj, err := decodeObject(text)
		if err != nil {
			return nil, fmt.Errorf("find many: %q: %w", ids[i], err)
		}
		obj["id"] = action.String(ids[i])
		docs = append(docs, obj)
	}

	matched, err := querymem.Run(queryir.Build(opts, filters), docs)
	if err != nil {
		return nil, fmt.Errorf("find many: %w", err)
	}
	out := make([]Record, len(matched))
	for i, obj := range matched {
		id := string(obj["id"].(action.String))
		delete(obj, "id")
		body, err := obj.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("find many: %q: %w", id, err)
		}
		out[i] = Record{ID: id, Doc: string(body)}
	}
	return out, nil
}

// candidates reads ids from the company index when the search names a
// company, the global index otherwise, bounded by start and end. Scores
// are truncated milliseconds, so the bounds are inclusive supersets and
// querymem applies the exact comparison.
func (s *Store) candidates(ctx context.Context, filters *action.FindActionFilters) ([]string, error) {
	key := s.allKey()
	bounds := &goredis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filters != nil {
		if filters.CompanyID != "" {
			key = s.companyKey(filters.CompanyID)
		}
		if t, ok := filters.StartTime(); ok {
			bounds.Min = strconv.FormatInt(t.UnixMilli(), 10)
		}
		if t, ok := filters.EndTime(); ok {
			bounds.Max = strconv.FormatInt(t.UnixMilli(), 10)
		}
	}
	return s.client.ZRangeByScore(ctx, key, bounds).Result()
}

// score returns the index score for a timestamp: unix milliseconds, or 0
// when the timestamp does not parse.
func score(ts string) float64 {
	t, err := action.ParseTimestamp(ts)
	if err != nil {
		return 0
	}
	return float64(t.UnixMilli())
}

func decodeObject(text string) (action.Object, error) {
	v, err := action.UnmarshalValue([]byte(text))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(action.Object)
	if !ok {
		return nil, fmt.Errorf("document is %T, not an object", v)
	}
	return obj, nil
}
