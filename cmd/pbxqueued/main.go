// Command pbxqueued is the call-queue dispatch core's composition root:
// it loads queues.conf/agents.conf/manager.conf, wires the queue
// registry, agent registry, KV/realtime stores, the manager plane, and
// a sipchannel driver, and serves until terminated.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/emiago/sipgo"
	"golang.org/x/sync/errgroup"

	"github.com/sebas/pbxqueue/internal/agentchan"
	"github.com/sebas/pbxqueue/internal/banner"
	"github.com/sebas/pbxqueue/internal/confload"
	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/logger"
	"github.com/sebas/pbxqueue/internal/manager"
	"github.com/sebas/pbxqueue/internal/pbx"
	"github.com/sebas/pbxqueue/internal/queue"
	"github.com/sebas/pbxqueue/internal/sipchannel"
	"github.com/sebas/pbxqueue/internal/store"
)

const version = "pbxqueued/1.0"

func main() {
	confDir := flag.String("confdir", "/etc/pbxqueue", "directory containing queues.conf, agents.conf, manager.conf")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	sipAdvertise := flag.String("sip-advertise", "127.0.0.1:5060", "address advertised in outbound SIP requests")
	flag.Parse()

	logger.Init(os.Stdout)
	logger.SetLevel(*logLevel)

	queuesGeneral, queueDefs, err := confload.LoadQueues(*confDir + "/queues.conf")
	if err != nil {
		slog.Error("failed to load queues.conf", "err", err)
		os.Exit(1)
	}
	agentsGeneral, agentDefs, err := confload.LoadAgents(*confDir + "/agents.conf")
	if err != nil {
		slog.Error("failed to load agents.conf", "err", err)
		os.Exit(1)
	}
	managerGeneral, managerUsers, err := confload.LoadManagerConf(*confDir + "/manager.conf")
	if err != nil {
		slog.Error("failed to load manager.conf", "err", err)
		os.Exit(1)
	}

	kv := store.NewMemoryKV()
	rt := store.NewMemoryRealtime()

	sink := &manager.Sink{}

	queueReg := queue.NewRegistry(sink)
	if queuesGeneral.PersistentMembers {
		queueReg.SetKV(kv)
	}
	queueReg.SetRealtime(queue.RealtimeSource{Store: rt, QueueTable: "queues", MemberTable: "queue_members"})
	for _, def := range queueDefs {
		q := queueReg.GetOrCreate(def.Config)
		for _, m := range def.StaticMembers {
			q.AddMember(m.Interface, m.Penalty, false)
		}
	}
	if queuesGeneral.PersistentMembers {
		if err := queue.ReplayPersistedMembers(context.Background(), kv, queueReg); err != nil {
			slog.Warn("failed to replay persisted queue members", "err", err)
		}
	}

	agentReg := agentchan.NewRegistry()
	for _, a := range confload.NewAgents(agentsGeneral, agentDefs) {
		agentReg.Register(a)
	}
	if agentsGeneral.PersistentAgents {
		if err := agentchan.ReplayLogins(context.Background(), kv, agentReg); err != nil {
			slog.Warn("failed to replay persisted agent logins", "err", err)
		}
	}

	var sipDriver *sipchannel.Driver
	ua, err := sipgo.NewUA()
	if err != nil {
		slog.Warn("sip user agent unavailable, agent callback origination disabled", "err", err)
	} else if client, err := sipgo.NewClient(ua); err != nil {
		slog.Warn("sip client unavailable, agent callback origination disabled", "err", err)
	} else if srv, err := sipgo.NewServer(ua); err != nil {
		slog.Warn("sip server unavailable, agent callback origination disabled", "err", err)
	} else {
		sipDriver = sipchannel.NewDriver(client, srv, "<sip:"+*sipAdvertise+">", *sipAdvertise)
	}

	dialer := &agentchan.QueueDialer{Registry: agentReg, Sink: sink}
	if sipDriver != nil {
		dialer.Originator = sipDriver
	}

	dispatch := manager.NewDispatcher()
	dispatch.Queues = queueReg
	dispatch.Agents = agentReg
	dispatch.Dialer = dialer
	dispatch.Version = version

	var listeners []manager.ListenerConfig
	for _, l := range managerGeneral.Listen {
		listeners = append(listeners, manager.ListenerConfig{
			Network:   networkFor(l.Address),
			Address:   l.Address,
			Banner:    l.Banner,
			QueueSize: managerGeneral.QueueSize,
		})
	}
	if len(listeners) == 0 {
		listeners = []manager.ListenerConfig{{Network: "tcp", Address: "127.0.0.1:5038", QueueSize: managerGeneral.QueueSize}}
	}

	userStore := confload.NewUserStore(managerUsers)
	mgrServer := manager.NewServer(listeners, userStore, dispatch)
	sink.Server = mgrServer

	banner.Print("pbxqueued", []banner.ConfigLine{
		{Label: "Version", Value: version},
		{Label: "Queues", Value: strings.Join(queueNames(queueReg), ", ")},
		{Label: "Agents", Value: strings.Join(agentIDs(agentReg), ", ")},
		{Label: "Manager listeners", Value: strings.Join(listenerAddrs(listeners), ", ")},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgrServer.Run(gctx) })

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig)
	case <-gctx.Done():
		slog.Error("manager server stopped", "err", gctx.Err())
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = g.Wait()
	_ = shutdownCtx
}

func networkFor(address string) string {
	if strings.HasPrefix(address, "/") {
		return "unix"
	}
	return "tcp"
}

func queueNames(reg *queue.Registry) []string {
	var out []string
	for _, q := range reg.All() {
		out = append(out, q.Name())
	}
	return out
}

func agentIDs(reg *agentchan.Registry) []string {
	var out []string
	for _, a := range reg.All() {
		out = append(out, a.ID)
	}
	return out
}

func listenerAddrs(listeners []manager.ListenerConfig) []string {
	var out []string
	for _, l := range listeners {
		out = append(out, l.Network+":"+l.Address)
	}
	return out
}

var _ pbx.Channel = (*sipchannel.Channel)(nil)
var _ events.Sink = (*manager.Sink)(nil)
