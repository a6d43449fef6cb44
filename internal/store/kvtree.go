// internal/store/kvtree.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultMaxRetries bounds how often Transact re-runs after losing a race.
const DefaultMaxRetries = 25

// errRestructure means a collection gained members between planning the key
// set and reading it; the transaction is re-planned.
var errRestructure = errors.New("store: key set changed")

type removal struct{}

// KVTree implements Tree on top of a Backend, splitting the tree into one
// document per Layout shard plus a member index per collection.
type KVTree struct {
	backend    Backend
	layout     *Layout
	logger     *logrus.Logger
	maxRetries int
	closed     atomic.Bool
}

// Option configures a KVTree.
type Option func(*KVTree)

// WithLayout replaces DefaultLayout.
func WithLayout(l *Layout) Option {
	return func(t *KVTree) { t.layout = l }
}

// WithLogger sets the logger used for subscription errors.
func WithLogger(l *logrus.Logger) Option {
	return func(t *KVTree) { t.logger = l }
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(t *KVTree) {
		if n > 0 {
			t.maxRetries = n
		}
	}
}

// NewKVTree builds a tree over b. A nil backend yields a tree whose every call
// fails with ErrUnavailable.
func NewKVTree(b Backend, opts ...Option) *KVTree {
	t := &KVTree{
		backend:    b,
		layout:     DefaultLayout(),
		logger:     logrus.StandardLogger(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Close marks the tree unavailable and closes the backend.
func (t *KVTree) Close() error {
	if t == nil || t.backend == nil || t.closed.Swap(true) {
		return nil
	}
	return t.backend.Close()
}

func (t *KVTree) available() error {
	if t == nil || t.backend == nil || t.closed.Load() {
		return ErrUnavailable
	}
	return nil
}

// Read returns the value at path, assembled from every document beneath it.
func (t *KVTree) Read(ctx context.Context, path string) (Snapshot, error) {
	if err := t.available(); err != nil {
		return Snapshot{}, err
	}
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	n, pat := t.layout.owner(segs)
	var vals map[string][]byte
	if reachesChildren(pat, n, segs[n:]) {
		_, vals, err = t.collect(ctx, segs[:n], pat)
	} else {
		// a plain field of the shard document; its children are not needed
		vals, err = t.backend.Get(ctx, docKey(segs[:n]))
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	full := t.assemble(vals, segs[:n], pat)
	sub, ok := getIn(full, segs[n:])
	if !ok {
		return NewSnapshot(path, nil), nil
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(path, raw), nil
}

// Write replaces the subtree at path. Writing nil removes it.
func (t *KVTree) Write(ctx context.Context, path string, value any) error {
	_, err := t.Transact(ctx, path, func(json.RawMessage) (any, error) {
		if value == nil {
			return removal{}, nil
		}
		return value, nil
	})
	return err
}

// Update patches the fields of the object at path without touching siblings.
// Field names may be relative paths such as "players/p1/isReady"; a nil
// value deletes the field. All fields land in one commit.
func (t *KVTree) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return t.available()
	}
	type patch struct {
		segs []string
		val  any
	}
	patches := make([]patch, 0, len(fields))
	for k, v := range fields {
		segs, err := splitPath(k)
		if err != nil {
			return err
		}
		gv, err := toValue(v)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", path, k, err)
		}
		patches = append(patches, patch{segs: segs, val: gv})
	}
	_, err := t.Transact(ctx, path, func(current json.RawMessage) (any, error) {
		v := decodeValue(current)
		for _, p := range patches {
			v = setIn(v, p.segs, p.val)
		}
		if v == nil {
			return removal{}, nil
		}
		return v, nil
	})
	return err
}

// Remove deletes the subtree at path.
func (t *KVTree) Remove(ctx context.Context, path string) error {
	_, err := t.Transact(ctx, path, func(json.RawMessage) (any, error) {
		return removal{}, nil
	})
	return err
}

// Transact runs update against the current value at path and commits the
// result atomically. Only the documents under the owning shard of path are
// watched.
func (t *KVTree) Transact(ctx context.Context, path string, update UpdateFunc) (TxResult, error) {
	if err := t.available(); err != nil {
		return TxResult{}, err
	}
	segs, err := splitPath(path)
	if err != nil {
		return TxResult{}, err
	}
	n, pat := t.layout.owner(segs)
	shard, rel := segs[:n], segs[n:]

	for attempt := 0; attempt < t.maxRetries; attempt++ {
		keys, _, err := t.collect(ctx, shard, pat)
		if err != nil {
			return TxResult{}, fmt.Errorf("transact %s: %w", path, err)
		}
		keySet := make(map[string]bool, len(keys))
		for _, k := range keys {
			keySet[k] = true
		}

		var result TxResult
		changed := false
		err = t.backend.Txn(ctx, keys, func(cur map[string][]byte) (map[string][]byte, error) {
			changed = false
			if !t.covered(cur, keySet, shard, pat) {
				return nil, errRestructure
			}
			full := t.assemble(cur, shard, pat)
			var currentRaw json.RawMessage
			if sub, ok := getIn(full, rel); ok {
				currentRaw, _ = json.Marshal(sub)
			}

			next, err := update(currentRaw)
			if err != nil {
				return nil, err
			}
			if next == nil {
				result = TxResult{Committed: false, Snapshot: NewSnapshot(path, currentRaw)}
				return nil, nil
			}

			var nextVal any
			if _, ok := next.(removal); !ok {
				if nextVal, err = toValue(next); err != nil {
					return nil, err
				}
			}
			newFull := setIn(full, rel, nextVal)

			writes := make(map[string][]byte)
			if newFull != nil {
				if err := t.disassemble(shard, pat, newFull, writes); err != nil {
					return nil, err
				}
			}
			// The parent index is watched by every transaction on the shard,
			// so creating or removing any sibling (a new room, say) forces a
			// retry here. It is only rewritten when membership changes, but it
			// holds one id per live sibling and is never compacted beyond
			// Remove.
			parentIdx := ""
			if len(shard) > 0 {
				parentIdx = indexKey(shard[:len(shard)-1])
				if _, had := cur[parentIdx]; had || newFull != nil {
					writes[parentIdx] = memberIndex(cur[parentIdx], shard[len(shard)-1], newFull != nil)
				}
			}
			for _, k := range keys {
				if _, ok := writes[k]; !ok && k != parentIdx {
					writes[k] = nil
				}
			}
			for k, v := range writes {
				old, existed := cur[k]
				if (v == nil && !existed) || (v != nil && existed && bytes.Equal(old, v)) {
					delete(writes, k)
				}
			}
			changed = len(writes) > 0

			var committedRaw json.RawMessage
			if nextVal != nil {
				committedRaw, _ = json.Marshal(nextVal)
			}
			result = TxResult{Committed: true, Snapshot: NewSnapshot(path, committedRaw)}
			return writes, nil
		})
		if errors.Is(err, ErrConflict) || errors.Is(err, errRestructure) {
			continue
		}
		if err != nil {
			return TxResult{}, err
		}
		if changed {
			if perr := t.backend.Publish(ctx, path); perr != nil {
				t.logger.WithError(perr).WithField("path", path).Warn("store: failed to publish change")
			}
		}
		return result, nil
	}
	return TxResult{}, fmt.Errorf("%w: %s", ErrMaxRetries, path)
}

// Subscribe calls fn with the current value at path and again after every
// change that touches it. A deleted path is delivered as a Snapshot whose
// Exists is false. No new call to fn starts once the returned func returns.
func (t *KVTree) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error) {
	if err := t.available(); err != nil {
		return nil, err
	}
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	subCtx, stop := context.WithCancel(ctx)
	changes, cancel, err := t.backend.Subscribe(subCtx)
	if err != nil {
		stop()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	initial, err := t.Read(subCtx, path)
	if err != nil {
		cancel()
		stop()
		return nil, err
	}

	var stopped atomic.Bool
	go func() {
		defer cancel()
		var last json.RawMessage
		delivered := false
		deliver := func(s Snapshot) {
			if stopped.Load() {
				return
			}
			if delivered && bytes.Equal(last, s.Raw()) {
				return
			}
			delivered, last = true, s.Raw()
			fn(s)
		}

		deliver(initial)
		for {
			select {
			case <-subCtx.Done():
				return
			case changed, ok := <-changes:
				if !ok {
					return
				}
				if !touches(changed, segs) && !drainTouching(changes, segs) {
					continue
				}
				snap, err := t.Read(subCtx, path)
				if err != nil {
					if subCtx.Err() == nil {
						t.logger.WithError(err).WithField("path", path).Warn("store: subscription read failed")
					}
					continue
				}
				deliver(snap)
			}
		}
	}()

	return func() {
		stopped.Store(true)
		stop()
	}, nil
}

func touches(changed string, segs []string) bool {
	c, err := splitPath(changed)
	if err != nil {
		return false
	}
	return overlaps(c, segs)
}

// drainTouching empties queued notifications so a burst costs a single read.
func drainTouching(changes <-chan string, segs []string) bool {
	hit := false
	for {
		select {
		case c, ok := <-changes:
			if !ok {
				return hit
			}
			if touches(c, segs) {
				hit = true
			}
		default:
			return hit
		}
	}
}

// collect walks the collection indexes under shard and returns every key the
// subtree spans, with the values read along the way.
func (t *KVTree) collect(ctx context.Context, shard []string, pat *pattern) ([]string, map[string][]byte, error) {
	type node struct {
		segs []string
		pat  *pattern
	}
	var keys, batch []string
	vals := make(map[string][]byte)
	if len(shard) > 0 {
		batch = append(batch, indexKey(shard[:len(shard)-1]))
	}
	level := []node{{segs: shard, pat: pat}}
	for len(level) > 0 {
		for _, n := range level {
			batch = append(batch, docKey(n.segs))
			for _, c := range n.pat.children {
				batch = append(batch, indexKey(c.collection(n.segs)))
			}
		}
		got, err := t.backend.Get(ctx, batch...)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, batch...)
		batch = nil
		for k, v := range got {
			vals[k] = v
		}
		var next []node
		for _, n := range level {
			for _, c := range n.pat.children {
				coll := c.collection(n.segs)
				for _, id := range parseIndex(got[indexKey(coll)]) {
					next = append(next, node{segs: appendSeg(coll, id), pat: c})
				}
			}
		}
		level = next
	}
	return keys, vals, nil
}

// reachesChildren reports whether rel, relative to a shard of depth n, can
// land inside one of the shard's child collections.
func reachesChildren(pat *pattern, n int, rel []string) bool {
	for _, c := range pat.children {
		if overlaps(c.segs[n:len(c.segs)-1], rel) {
			return true
		}
	}
	return false
}

// covered reports whether every member listed in the indexes under segs has
// its document in keySet.
func (t *KVTree) covered(cur map[string][]byte, keySet map[string]bool, segs []string, pat *pattern) bool {
	for _, c := range pat.children {
		coll := c.collection(segs)
		for _, id := range parseIndex(cur[indexKey(coll)]) {
			child := appendSeg(coll, id)
			if !keySet[docKey(child)] || !t.covered(cur, keySet, child, c) {
				return false
			}
		}
	}
	return true
}

func (t *KVTree) assemble(vals map[string][]byte, segs []string, pat *pattern) any {
	v := decodeValue(vals[docKey(segs)])
	for _, c := range pat.children {
		coll := c.collection(segs)
		raw, ok := vals[indexKey(coll)]
		if !ok {
			continue
		}
		members := make(map[string]any)
		for _, id := range parseIndex(raw) {
			if child := t.assemble(vals, appendSeg(coll, id), c); child != nil {
				members[id] = child
			}
		}
		v = setIn(v, coll[len(segs):], members)
	}
	return v
}

func (t *KVTree) disassemble(segs []string, pat *pattern, v any, writes map[string][]byte) error {
	doc := v
	for _, c := range pat.children {
		coll := c.collection(segs)
		rel := coll[len(segs):]
		sub, ok := getIn(doc, rel)
		if !ok {
			continue
		}
		members, isMap := sub.(map[string]any)
		if !isMap {
			return fmt.Errorf("store: %s must be an object", joinPath(coll))
		}
		ids := sortedKeys(members)
		writes[indexKey(coll)] = marshalIndex(ids)
		for _, id := range ids {
			if err := t.disassemble(appendSeg(coll, id), c, members[id], writes); err != nil {
				return err
			}
		}
		doc = setIn(doc, rel, nil)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	writes[docKey(segs)] = raw
	return nil
}

func memberIndex(raw []byte, id string, present bool) []byte {
	ids := parseIndex(raw)
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			if !present {
				continue
			}
		}
		out = append(out, existing)
	}
	if present && !found {
		out = append(out, id)
	}
	return marshalIndex(out)
}
