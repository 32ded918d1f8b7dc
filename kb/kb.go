// Package kb is the in-memory satellite catalog: names, NORAD ids and the
// two-line element sets used for local propagation.
package kb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signalsfoundry/satmap/model"
)

// TLELineLength is the fixed width of a TLE data line.
const TLELineLength = 69

var (
	ErrMalformedTLE = errors.New("malformed TLE")
	ErrNotFound     = errors.New("satellite not found")
	ErrDuplicate    = errors.New("satellite already exists")
)

// Entry is one catalogued satellite.
type Entry struct {
	Info  model.SatelliteInfo `json:"info"`
	Line1 string              `json:"line1"`
	Line2 string              `json:"line2"`
}

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventSatelliteAdded EventType = iota
	EventSatelliteUpdated
)

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type  EventType
	Entry Entry
}

// Catalog is an in-memory, thread-safe store of satellites keyed by NORAD id.
type Catalog struct {
	mu      sync.RWMutex
	entries map[int]*Entry
	subs    map[int]func(Event)
	nextSub int
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entries: make(map[int]*Entry),
		subs:    make(map[int]func(Event)),
	}
}

// Add inserts e. It returns ErrDuplicate if the id already exists.
func (c *Catalog) Add(e Entry) error {
	c.mu.Lock()
	if _, exists := c.entries[e.Info.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("satellite %d: %w", e.Info.ID, ErrDuplicate)
	}
	c.entries[e.Info.ID] = &e
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, Event{Type: EventSatelliteAdded, Entry: e})
	return nil
}

// Upsert inserts or replaces e, typically with fresher elements.
func (c *Catalog) Upsert(e Entry) {
	c.mu.Lock()
	typ := EventSatelliteAdded
	if _, exists := c.entries[e.Info.ID]; exists {
		typ = EventSatelliteUpdated
	}
	c.entries[e.Info.ID] = &e
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, Event{Type: typ, Entry: e})
}

// Get returns a copy of the entry with the given id.
func (c *Catalog) Get(id int) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("satellite %d: %w", id, ErrNotFound)
	}
	return *e, nil
}

// List returns a snapshot of all entries ordered by id.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		res = append(res, *e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Info.ID < res[j].Info.ID })
	return res
}

// Len returns the number of catalogued satellites.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Load parses TLE text from r and upserts every entry. It returns the
// number of entries loaded.
func (c *Catalog) Load(r io.Reader) (int, error) {
	entries, err := ParseTLE(r)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		c.Upsert(e)
	}
	return len(entries), nil
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Catalog) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

// ParseTLE reads element sets in the three-line (name, line 1, line 2) or
// bare two-line form. Two-line entries are named after their catalog number.
func ParseTLE(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	var (
		out     []Entry
		name    string
		line1   string
		lineNo  int
		line1No int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "1 ") && line1 == "":
			line1, line1No = line, lineNo
		case strings.HasPrefix(line, "2 ") && line1 != "":
			e, err := newEntry(name, line1, line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line1No, err)
			}
			out = append(out, e)
			name, line1 = "", ""
		case line1 != "":
			return nil, fmt.Errorf("line %d: %w: expected line 2", lineNo, ErrMalformedTLE)
		default:
			name = strings.TrimSpace(strings.TrimPrefix(line, "0 "))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read TLE: %w", err)
	}
	if line1 != "" {
		return nil, fmt.Errorf("line %d: %w: missing line 2", line1No, ErrMalformedTLE)
	}
	return out, nil
}

func newEntry(name, line1, line2 string) (Entry, error) {
	if len(line1) != TLELineLength || len(line2) != TLELineLength {
		return Entry{}, fmt.Errorf("%w: lines must be %d characters", ErrMalformedTLE, TLELineLength)
	}
	id, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: catalog number %q", ErrMalformedTLE, line1[2:7])
	}
	if id2 := strings.TrimSpace(line2[2:7]); id2 != strings.TrimSpace(line1[2:7]) {
		return Entry{}, fmt.Errorf("%w: catalog numbers differ (%s, %s)", ErrMalformedTLE, line1[2:7], id2)
	}
	if name == "" {
		name = strconv.Itoa(id)
	}
	return Entry{
		Info:  model.SatelliteInfo{ID: id, Name: name},
		Line1: line1,
		Line2: line2,
	}, nil
}
