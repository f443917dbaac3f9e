package agentchan

import (
	"context"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// Login binds phys as a's physical channel (the AgentLogin application /
// manager action) and starts music-on-hold while the agent waits for an
// offer, matching a fixed-login agent's idle presentation.
func Login(ctx context.Context, a *Agent, phys pbx.Channel, sink events.Sink) error {
	a.LoginFixed(ctx, phys)
	if err := phys.StartMOH(ctx, a.MusicClass); err != nil {
		return err
	}
	sink.Publish("Agentlogin", []events.Field{
		events.F("Agent", a.ID),
		events.F("Channel", phys.ID()),
	})
	return nil
}

// CallbackLogin records dialString as a's callback dial target (the
// AgentCallbackLogin manager action) and persists it so a restart can
// replay the login (spec §4.1.10).
func CallbackLogin(ctx context.Context, kv pbx.KVStore, a *Agent, dialString string, sink events.Sink) error {
	a.LoginCallback(dialString)
	if kv != nil {
		if err := PersistLogin(ctx, kv, a); err != nil {
			return err
		}
	}
	sink.Publish("Agentcallbacklogin", []events.Field{
		events.F("Agent", a.ID),
		events.F("Loginchan", dialString),
	})
	return nil
}

// Logoff clears a's login state (the AgentLogoff manager action),
// removing any persisted callback record.
func Logoff(ctx context.Context, kv pbx.KVStore, a *Agent, reason string, sink events.Sink) error {
	wasCallback := a.CallbackLoggedIn()
	a.Logoff()
	if kv != nil && wasCallback {
		if err := kv.Delete(ctx, PersistFamily, a.ID); err != nil {
			return err
		}
	}
	event := "Agentlogoff"
	if wasCallback {
		event = "AgentCallbackLogoff"
	}
	sink.Publish(event, []events.Field{
		events.F("Agent", a.ID),
		events.F("Reason", reason),
	})
	return nil
}
