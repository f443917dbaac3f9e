package confload

import (
	"strings"

	"github.com/sebas/pbxqueue/internal/manager"
)

// ManagerGeneral is the [general] section of manager.conf.
type ManagerGeneral struct {
	Listen          []ListenDirective
	QueueSize       int
	DisplayConnects bool
}

// ListenDirective is one `"banner" host:port` or `"banner" /path/to/socket`
// listen line.
type ListenDirective struct {
	Banner  string
	Address string
}

// ManagerUser is one per-user section of manager.conf.
type ManagerUser struct {
	Name      string
	Secret    string
	ReadMask  manager.Category
	WriteMask manager.Category
}

// LoadManagerConf parses manager.conf per spec §6's abstract schema.
func LoadManagerConf(path string) (ManagerGeneral, []ManagerUser, error) {
	f, err := LoadFile(path)
	if err != nil {
		return ManagerGeneral{}, nil, err
	}

	general := ManagerGeneral{QueueSize: 1024}
	if g := f.Section("general"); g != nil {
		general.QueueSize = parseInt(g.Get("queuesize"), 1024)
		general.DisplayConnects = parseBool(g.Get("displayconnects"), true)
		for _, raw := range g.GetAll("listen") {
			general.Listen = append(general.Listen, parseListenDirective(raw))
		}
	}

	var users []ManagerUser
	for _, s := range f.Sections {
		if strings.EqualFold(s.Name, "general") {
			continue
		}
		users = append(users, ManagerUser{
			Name:      s.Name,
			Secret:    s.Get("secret"),
			ReadMask:  manager.ParseMask(s.Get("read")),
			WriteMask: manager.ParseMask(s.Get("write")),
		})
	}
	return general, users, nil
}

func parseListenDirective(raw string) ListenDirective {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, `"`) {
		if idx := strings.Index(raw[1:], `"`); idx >= 0 {
			banner := raw[1 : idx+1]
			rest := strings.TrimSpace(raw[idx+2:])
			return ListenDirective{Banner: banner, Address: rest}
		}
	}
	return ListenDirective{Address: raw}
}

// userStore is a static in-memory UserStore built from parsed manager.conf
// user sections.
type userStore struct {
	byName map[string]manager.User
}

// NewUserStore builds a manager.UserStore from parsed manager.conf users.
func NewUserStore(users []ManagerUser) manager.UserStore {
	s := &userStore{byName: make(map[string]manager.User, len(users))}
	for _, u := range users {
		s.byName[u.Name] = manager.User{
			Name:      u.Name,
			Secret:    u.Secret,
			ReadMask:  u.ReadMask,
			WriteMask: u.WriteMask,
		}
	}
	return s
}

func (s *userStore) Lookup(username string) (manager.User, bool) {
	u, ok := s.byName[username]
	return u, ok
}
