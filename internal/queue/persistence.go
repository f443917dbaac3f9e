package queue

import (
	"context"
	"strconv"
	"strings"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// PersistFamily is the KVStore family used for dynamic queue members
// (spec §6: "Family /Queue/PersistentMembers").
const PersistFamily = "/Queue/PersistentMembers"

// PersistMembers rewrites q's persisted dynamic-member record, or
// deletes it if q now has no dynamic members (spec §4.1.10).
func PersistMembers(ctx context.Context, kv pbx.KVStore, q *Queue) error {
	members := q.DynamicMembers()
	if len(members) == 0 {
		return kv.Delete(ctx, PersistFamily, q.Name())
	}
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, m.PersistValue())
	}
	value := strings.Join(parts, "|")
	if len(value) > 2048 {
		value = value[:2048]
	}
	return kv.Set(ctx, PersistFamily, q.Name(), value)
}

// ReplayPersistedMembers enumerates every persisted record on startup and
// replays it onto the matching in-memory queue via AddMember("dynamic"),
// deleting any record whose queue no longer exists (spec §4.1.10).
func ReplayPersistedMembers(ctx context.Context, kv pbx.KVStore, reg *Registry) error {
	records, err := kv.Enumerate(ctx, PersistFamily)
	if err != nil {
		return err
	}
	for queueName, value := range records {
		q := reg.Lookup(queueName)
		if q == nil {
			_ = kv.Delete(ctx, PersistFamily, queueName)
			continue
		}
		for _, tuple := range strings.Split(value, "|") {
			if tuple == "" {
				continue
			}
			fields := strings.Split(tuple, ";")
			if len(fields) != 3 {
				continue
			}
			iface := fields[0]
			penalty, _ := strconv.Atoi(fields[1])
			q.AddMember(iface, penalty, true)
			if fields[2] == "1" {
				q.SetPaused(iface, true)
			}
		}
	}
	return nil
}
