package confload

import (
	"strings"
	"time"

	"github.com/sebas/pbxqueue/internal/agentchan"
)

// AgentsGeneral is the [general] section of agents.conf.
type AgentsGeneral struct {
	PersistentAgents bool
	MaxLoginTries    int
	AutoLogoff       time.Duration
	WrapupTime       time.Duration
	AckCall          agentchan.AckCallMode
	MusicClass       string
	RecordAgentCalls bool
	Goodbye          string
}

// AgentDef is one "agent => id,password,name" line of the [agents]
// section.
type AgentDef struct {
	ID       string
	Password string
	Name     string
}

// LoadAgents parses agents.conf per spec §6's abstract schema.
func LoadAgents(path string) (AgentsGeneral, []AgentDef, error) {
	f, err := LoadFile(path)
	if err != nil {
		return AgentsGeneral{}, nil, err
	}

	general := AgentsGeneral{MusicClass: "default"}
	if g := f.Section("general"); g != nil {
		general.PersistentAgents = parseBool(g.Get("persistentagents"), true)
		general.MaxLoginTries = parseInt(g.Get("maxlogintries"), 3)
		general.AutoLogoff = time.Duration(parseInt(g.Get("autologoff"), 0)) * time.Second
		general.WrapupTime = time.Duration(parseInt(g.Get("wrapuptime"), 0)) * time.Second
		general.AckCall = parseAckCall(g.Get("ackcall"))
		if v := g.Get("musiconhold"); v != "" {
			general.MusicClass = v
		}
		general.RecordAgentCalls = parseBool(g.Get("recordagentcalls"), false)
		general.Goodbye = g.Get("goodbye")
	}

	var defs []AgentDef
	if section := f.Section("agents"); section != nil {
		for _, line := range section.Lines {
			if line.Key != "agent" {
				continue
			}
			parts := strings.SplitN(line.Value, ",", 3)
			def := AgentDef{}
			if len(parts) > 0 {
				def.ID = strings.TrimSpace(parts[0])
			}
			if len(parts) > 1 {
				def.Password = strings.TrimSpace(parts[1])
			}
			if len(parts) > 2 {
				def.Name = strings.TrimSpace(parts[2])
			}
			defs = append(defs, def)
		}
	}
	return general, defs, nil
}

func parseAckCall(v string) agentchan.AckCallMode {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "required":
		return agentchan.AckRequired
	case "always":
		return agentchan.AckRequiredAlways
	default:
		return agentchan.AckNone
	}
}

// NewAgents builds agentchan.Agent records from parsed definitions,
// applying the [general] defaults per-agent (agents.conf has no
// per-agent override syntax beyond id/password/name).
func NewAgents(general AgentsGeneral, defs []AgentDef) []*agentchan.Agent {
	out := make([]*agentchan.Agent, 0, len(defs))
	for _, d := range defs {
		a := agentchan.NewAgent(d.ID, d.Password, d.Name)
		a.AutoLogoff = general.AutoLogoff
		a.WrapupTime = general.WrapupTime
		a.AckCall = general.AckCall
		a.MusicClass = general.MusicClass
		out = append(out, a)
	}
	return out
}
