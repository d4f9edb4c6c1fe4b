// Package history persists a short record of every scan and check so the
// dashboard can show running totals across sessions.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"modscan/internal/shared"
)

// Entry kinds beyond the shared scan kinds.
const (
	KindVpn = "vpn"
	KindURL = "url"
)

var (
	prefixEntry = []byte("scan:")
	keyTotals   = []byte("meta:totals")
)

// Entry is one recorded operation.
type Entry struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Target  string    `json:"target"`
	Status  string    `json:"status"`
	Hits    int       `json:"hits"`
	Flagged bool      `json:"flagged,omitempty"`
	At      time.Time `json:"at"`
}

// FromReport summarizes a scan report.
func FromReport(r *shared.ScanReport) Entry {
	return Entry{
		ID:     r.ID,
		Kind:   string(r.Kind),
		Target: r.Target,
		Status: r.Status(),
		Hits:   len(r.Hits),
		At:     r.FinishedAt,
	}
}

// Store keeps entries under scan:<nanos>:<id> and running totals under
// meta:totals, updated in the same batch as each entry.
type Store struct {
	db *pebble.DB

	mu     sync.Mutex
	totals shared.Stats
}

// Open opens or creates the store at path, retrying briefly while another
// process holds the lock.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &pebble.Options{
		Logger: log.Named("pebble").Sugar(),
	}

	var db *pebble.DB
	var err error
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		db, err = pebble.Open(path, opts)
		if err == nil {
			break
		}
		if strings.Contains(err.Error(), "lock") || strings.Contains(err.Error(), "temporarily unavailable") {
			time.Sleep(100 * time.Millisecond * time.Duration(1<<i))
			continue
		}
		return nil, fmt.Errorf("open history %q: %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("history %q still locked after %d attempts: %w", path, maxRetries, err)
	}

	s := &Store{db: db}
	if err := s.loadTotals(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// loadTotals reads the persisted totals, rebuilding them from the entries
// once when the key is missing.
func (s *Store) loadTotals() error {
	val, closer, err := s.db.Get(keyTotals)
	if err == nil {
		defer closer.Close()
		return json.Unmarshal(val, &s.totals)
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("read totals: %w", err)
	}

	st, err := s.countEntries()
	if err != nil {
		return err
	}
	s.totals = st
	enc, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.db.Set(keyTotals, enc, pebble.Sync)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func entryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixEntry, e.At.UnixNano(), e.ID))
}

// Record stores e. Zero At defaults to now.
func (s *Store) Record(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.ID == "" {
		return shared.Invalid("history entry without id")
	}
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := entryKey(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	totals := s.totals
	if prev, closer, err := s.db.Get(key); err == nil {
		var old Entry
		if json.Unmarshal(prev, &old) == nil {
			old.count(&totals, -1)
		}
		closer.Close()
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	e.count(&totals, 1)
	enc, err := json.Marshal(totals)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, val, nil); err != nil {
		return err
	}
	if err := b.Set(keyTotals, enc, nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return err
	}
	s.totals = totals
	return nil
}

// count adds e to st, or removes it when sign is -1.
func (e Entry) count(st *shared.Stats, sign int) {
	flagged := 0
	if e.Flagged {
		flagged = sign
	}
	switch e.Kind {
	case KindVpn:
		st.VpnChecks += sign
		st.VpnFlagged += flagged
	case KindURL:
		st.UrlScans += sign
		st.UrlSuspicious += flagged
	default:
		st.TotalScans += sign
		st.TotalHits += sign * e.Hits
	}
}

func (s *Store) iter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixEntry,
		UpperBound: []byte("scan;"),
	})
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	iter, err := s.iter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	for valid := iter.Last(); valid && (n <= 0 || len(out) < n); valid = iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// Stats returns the running totals over every recorded entry.
func (s *Store) Stats() (shared.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals, nil
}

func (s *Store) countEntries() (shared.Stats, error) {
	var st shared.Stats

	iter, err := s.iter()
	if err != nil {
		return st, err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		e.count(&st, 1)
	}
	return st, iter.Error()
}
