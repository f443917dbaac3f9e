package confload

import (
	"strconv"
	"strings"

	"github.com/sebas/pbxqueue/internal/queue"
)

// QueuesGeneral is the [general] section of queues.conf.
type QueuesGeneral struct {
	PersistentMembers bool
}

// StaticMember is one "member => interface[,penalty]" line.
type StaticMember struct {
	Interface string
	Penalty   int
}

// QueueDef is one [queuename] section of queues.conf, decoded into a
// queue.Config plus its static member list.
type QueueDef struct {
	Config        queue.Config
	StaticMembers []StaticMember
}

// LoadQueues parses queues.conf per spec §6's abstract schema.
func LoadQueues(path string) (QueuesGeneral, []QueueDef, error) {
	f, err := LoadFile(path)
	if err != nil {
		return QueuesGeneral{}, nil, err
	}

	var general QueuesGeneral
	if g := f.Section("general"); g != nil {
		general.PersistentMembers = parseBool(g.Get("persistentmembers"), true)
	}

	var defs []QueueDef
	for _, s := range f.Sections {
		if strings.EqualFold(s.Name, "general") {
			continue
		}
		defs = append(defs, decodeQueueSection(s))
	}
	return general, defs, nil
}

func decodeQueueSection(s *Section) QueueDef {
	cfg := queue.DefaultConfig(s.Name)

	if v := s.Get("strategy"); v != "" {
		cfg.Strategy = parseStrategyName(v)
	}
	if v := s.Get("retry"); v != "" {
		cfg.RetrySeconds = parseInt(v, cfg.RetrySeconds)
	}
	if v := s.Get("timeout"); v != "" {
		cfg.TimeoutSeconds = parseInt(v, cfg.TimeoutSeconds)
	}
	if v := s.Get("maxlen"); v != "" {
		cfg.MaxLen = parseInt(v, cfg.MaxLen)
	}
	if v := s.Get("wrapuptime"); v != "" {
		cfg.WrapupSeconds = parseInt(v, cfg.WrapupSeconds)
	}
	if v := s.Get("weight"); v != "" {
		cfg.Weight = parseInt(v, cfg.Weight)
	}
	if v := s.Get("servicelevel"); v != "" {
		cfg.ServiceLevel = parseInt(v, cfg.ServiceLevel)
	}
	if v := s.Get("announce-frequency"); v != "" {
		cfg.AnnounceFrequency = parseInt(v, cfg.AnnounceFrequency)
	}
	if v := s.Get("periodic-announce-frequency"); v != "" {
		cfg.PeriodicFrequency = parseInt(v, cfg.PeriodicFrequency)
	}
	if v := s.Get("announce-round-seconds"); v != "" {
		cfg.RoundingSeconds = parseInt(v, cfg.RoundingSeconds)
	}
	if v := s.Get("joinempty"); v != "" {
		cfg.JoinEmpty = parseJoinEmptyPolicy(v)
	}
	if v := s.Get("leavewhenempty"); v != "" {
		cfg.LeaveWhenEmpty = parseLeaveWhenEmptyPolicy(v)
	}
	if v := s.Get("reportholdtime"); v != "" {
		cfg.ReportHoldTime = parseBool(v, cfg.ReportHoldTime)
	}
	if v := s.Get("musiconhold"); v != "" {
		cfg.MusicClass = v
	}
	if v := s.Get("context"); v != "" {
		cfg.ExitContext = v
	}
	if v := s.Get("monitor-format"); v != "" {
		cfg.MonitorFormat = v
	}
	if v := s.Get("timeoutrestart"); v != "" {
		cfg.TimeoutRestart = parseBool(v, cfg.TimeoutRestart)
	}
	if v := s.Get("periodic-announce"); v != "" {
		cfg.PeriodicAnnounceFile = v
	}

	var members []StaticMember
	for _, line := range s.Lines {
		if line.Key != "member" {
			continue
		}
		parts := strings.SplitN(line.Value, ",", 2)
		m := StaticMember{Interface: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			m.Penalty = parseInt(strings.TrimSpace(parts[1]), 0)
		}
		members = append(members, m)
	}

	return QueueDef{Config: cfg, StaticMembers: members}
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true
	case "no", "false", "0", "off":
		return false
	default:
		return fallback
	}
}

func parseStrategyName(v string) queue.Strategy {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ringall":
		return queue.StrategyRingAll
	case "roundrobin":
		return queue.StrategyRoundRobin
	case "rrmemory", "roundrobinmemory":
		return queue.StrategyRoundRobinMemory
	case "leastrecent":
		return queue.StrategyLeastRecent
	case "fewestcalls":
		return queue.StrategyFewestCalls
	case "random":
		return queue.StrategyRandom
	default:
		return queue.StrategyRingAll
	}
}

func parseJoinEmptyPolicy(v string) queue.JoinEmptyPolicy {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "allow":
		return queue.JoinEmptyAllow
	case "strict":
		return queue.JoinEmptyStrict
	default:
		return queue.JoinEmptyNormal
	}
}

func parseLeaveWhenEmptyPolicy(v string) queue.LeaveWhenEmptyPolicy {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "normal":
		return queue.LeaveWhenEmptyNormal
	case "strict":
		return queue.LeaveWhenEmptyStrict
	default:
		return queue.LeaveWhenEmptyNever
	}
}
