package store

import (
	"sync"
	"time"
)

// Keyspace is the shared key→Value map, guarded by one RWMutex per
// spec.md §5: GET/TYPE/XRANGE/XREAD/KEYS take shared access,
// SET/DEL/XADD/the expiration sweep take exclusive access. There is no
// separate key set: the map's own keys serve as the key set, so
// keyspace.contains(k) ⇔ keyset.contains(k) holds by construction
// rather than by keeping two structures in sync.
type Keyspace struct {
	mu   sync.RWMutex
	data map[string]*Value
}

func NewKeyspace() *Keyspace {
	return &Keyspace{data: make(map[string]*Value)}
}

// Set inserts or overwrites key with body, computing an absolute
// expiry from ttl if non-nil.
func (k *Keyspace) Set(key string, body ValueBody, ttl *time.Duration) {
	now := time.Now()
	v := &Value{Body: body, CreatedAt: now}
	if ttl != nil {
		exp := now.Add(*ttl)
		v.ExpiresAt = &exp
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = v
}

// Get returns the value at key if present and not expired. Lazily
// expired entries are reported absent without being deleted here —
// deletion is the expiration sweep's job — so a read never observes
// expired data, per spec.md §4.7.
func (k *Keyspace) Get(key string) (*Value, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.data[key]
	if !ok || v.Expired(time.Now()) {
		return nil, false
	}
	return v, true
}

// Delete removes key, reporting whether it existed (and wasn't
// already lazily expired).
func (k *Keyspace) Delete(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	if !ok {
		return false
	}
	delete(k.data, key)
	return !v.Expired(time.Now())
}

// Keys returns every live key, in unspecified order.
func (k *Keyspace) Keys() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	now := time.Now()
	out := make([]string, 0, len(k.data))
	for key, v := range k.data {
		if !v.Expired(now) {
			out = append(out, key)
		}
	}
	return out
}

// ExpireSweep removes every entry whose expiry has passed and returns
// the number removed.
func (k *Keyspace) ExpireSweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := time.Now()
	removed := 0
	for key, v := range k.data {
		if v.Expired(now) {
			delete(k.data, key)
			removed++
		}
	}
	return removed
}

// Type reports the type name spec.md's TYPE command surfaces.
func (k *Keyspace) Type(key string) string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.data[key]
	if !ok || v.Expired(time.Now()) {
		return "none"
	}
	return v.Body.Kind.String()
}

// XAdd allocates a stream id for rawID against key's current top
// entry, validates it, appends the entry, and returns the allocated
// id, implementing spec.md §4.3 under a single write-lock critical
// section.
func (k *Keyspace) XAdd(key string, rawID string, fields map[string]string) (StreamID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, exists := k.data[key]
	if exists && v.Expired(time.Now()) {
		exists = false
	}
	if exists && v.Body.Kind != BodyStream {
		return StreamID{}, ErrWrongType
	}

	var last *StreamID
	if exists && len(v.Body.Stream) > 0 {
		l := v.Body.Stream[len(v.Body.Stream)-1].ID
		last = &l
	}

	id, err := allocateStreamID(rawID, last)
	if err != nil {
		return StreamID{}, err
	}
	if id.IsZero() {
		return StreamID{}, ErrIDZero
	}
	if last != nil {
		if id.Ms < last.Ms || (id.Ms == last.Ms && id.Seq <= last.Seq) {
			return StreamID{}, ErrIDTooSmall
		}
	}

	if !exists {
		v = &Value{Body: StreamBody(), CreatedAt: time.Now()}
		k.data[key] = v
	}
	v.Body.Stream = append(v.Body.Stream, StreamEntry{ID: id, Fields: fields})
	return id, nil
}

// XRange returns entries whose id independently satisfies
// start.Ms<=ms<=end.Ms AND start.Seq<=seq<=end.Seq (component-wise,
// not lexicographic). ok is false if the key is absent (caller
// replies NullArray); err is ErrWrongType if key holds a String.
func (k *Keyspace) XRange(key string, start, end StreamID) (entries []StreamEntry, ok bool, err error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, exists := k.data[key]
	if !exists || v.Expired(time.Now()) {
		return nil, false, nil
	}
	if v.Body.Kind != BodyStream {
		return nil, true, ErrWrongType
	}
	for _, e := range v.Body.Stream {
		if e.ID.Ms >= start.Ms && e.ID.Ms <= end.Ms && e.ID.Seq >= start.Seq && e.ID.Seq <= end.Seq {
			entries = append(entries, e)
		}
	}
	return entries, true, nil
}

// XReadQuery names one (key, exclusive-after-id) pair of an XREAD
// request.
type XReadQuery struct {
	Key string
	// After is the exclusive lower bound: entries are returned iff
	// ms >= After.Ms AND seq > After.Seq.
	After StreamID
}

// XRead returns, per queried key, the entries strictly after the
// queried id (up to count if count > 0), skipping keys that don't
// hold a Stream. found is false if no key yielded any entry, in which
// case the caller replies NullArray.
func (k *Keyspace) XRead(queries []XReadQuery, count int) (result map[string][]StreamEntry, found bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	result = make(map[string][]StreamEntry)
	now := time.Now()
	for _, q := range queries {
		v, exists := k.data[q.Key]
		if !exists || v.Expired(now) || v.Body.Kind != BodyStream {
			continue
		}
		var matched []StreamEntry
		for _, e := range v.Body.Stream {
			if e.ID.Ms >= q.After.Ms && e.ID.Seq > q.After.Seq {
				matched = append(matched, e)
				if count > 0 && len(matched) >= count {
					break
				}
			}
		}
		if len(matched) > 0 {
			result[q.Key] = matched
			found = true
		}
	}
	return result, found
}

// LastStreamID returns the current top entry's id for key, used by
// XREAD's `$` id form to capture "only entries from now on".
func (k *Keyspace) LastStreamID(key string) (StreamID, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, exists := k.data[key]
	if !exists || v.Expired(time.Now()) || v.Body.Kind != BodyStream || len(v.Body.Stream) == 0 {
		return StreamID{}, false
	}
	return v.Body.Stream[len(v.Body.Stream)-1].ID, true
}
