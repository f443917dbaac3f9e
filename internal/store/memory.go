// Package store provides in-memory implementations of the pbx.KVStore and
// pbx.RealtimeStore collaborator interfaces, suitable for development and
// for the package tests elsewhere in this module. Production deployments
// wire a real persistent store (e.g. a key/value service) and a real
// database-backed realtime source behind the same interfaces; see
// internal/pbx for the seam and DESIGN.md for what this module does and
// does not ship a concrete driver for.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// MemoryKV is a process-local pbx.KVStore. It is authoritative only for
// the lifetime of the process; real deployments back this interface with
// a durable store so persisted queue members and agent logins survive a
// restart (spec §4.1.10).
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string]string // family -> key -> value
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, family, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fam, ok := m.data[family]
	if !ok {
		return "", false, nil
	}
	v, ok := fam[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, family, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fam, ok := m.data[family]
	if !ok {
		fam = make(map[string]string)
		m.data[family] = fam
	}
	fam[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, family, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fam, ok := m.data[family]; ok {
		delete(fam, key)
	}
	return nil
}

func (m *MemoryKV) Enumerate(_ context.Context, family string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range m.data[family] {
		out[k] = v
	}
	return out, nil
}

var _ pbx.KVStore = (*MemoryKV)(nil)

// MemoryRealtime is a process-local pbx.RealtimeStore backed by a plain
// slice of rows per table, for tests and for standalone operation without
// a real realtime database behind it.
type MemoryRealtime struct {
	mu     sync.RWMutex
	tables map[string][]pbx.RealtimeRow
}

// NewMemoryRealtime creates an empty realtime source.
func NewMemoryRealtime() *MemoryRealtime {
	return &MemoryRealtime{tables: make(map[string][]pbx.RealtimeRow)}
}

// Seed replaces the rows of table wholesale; used by tests to preload a
// static realtime fixture.
func (m *MemoryRealtime) Seed(table string, rows []pbx.RealtimeRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = rows
}

func (m *MemoryRealtime) Lookup(_ context.Context, table, key string) (pbx.RealtimeRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.tables[table] {
		if strings.EqualFold(row["name"], key) {
			return row, true, nil
		}
	}
	return nil, false, nil
}

func (m *MemoryRealtime) LookupMulti(_ context.Context, table, column, value string) ([]pbx.RealtimeRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []pbx.RealtimeRow
	for _, row := range m.tables[table] {
		if strings.EqualFold(row[column], value) {
			out = append(out, row)
		}
	}
	return out, nil
}

var _ pbx.RealtimeStore = (*MemoryRealtime)(nil)
