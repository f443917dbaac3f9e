package agentchan

import (
	"context"
	"strconv"
	"strings"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// PersistFamily is the KVStore family used for callback-logged-in agents
// (spec §4.1.10/§6: "Family /Agents").
const PersistFamily = "/Agents"

// PersistLogin writes or clears a's callback-login record.
func PersistLogin(ctx context.Context, kv pbx.KVStore, a *Agent) error {
	dialString := a.LoginChannelString()
	if dialString == "" {
		return kv.Delete(ctx, PersistFamily, a.ID)
	}
	value := strings.Join([]string{dialString, strconv.FormatInt(a.LoginStart().Unix(), 10)}, ";")
	return kv.Set(ctx, PersistFamily, a.ID, value)
}

// ReplayLogins enumerates every persisted callback login on startup and
// applies it to the matching registered agent, discarding orphan records
// whose agent id is no longer configured.
func ReplayLogins(ctx context.Context, kv pbx.KVStore, reg *Registry) error {
	records, err := kv.Enumerate(ctx, PersistFamily)
	if err != nil {
		return err
	}
	for id, value := range records {
		a := reg.Lookup(id)
		if a == nil {
			_ = kv.Delete(ctx, PersistFamily, id)
			continue
		}
		fields := strings.SplitN(value, ";", 2)
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		a.LoginCallback(fields[0])
	}
	return nil
}
