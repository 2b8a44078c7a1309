package commands

import (
	"sort"
	"strings"
	"sync"

	"github.com/magabrotheeeer/donation-bot/internal/lib/phone"
)

// Settings изменяемые во время работы списки доступа.
type Settings struct {
	mu        sync.RWMutex
	whitelist map[string]struct{}
	banlist   map[string]struct{}
}

// NewSettings создает Settings с начальными списками из конфига.
func NewSettings(whitelist, banlist []string) *Settings {
	s := &Settings{}
	s.SetWhitelist(whitelist)
	s.SetBanlist(banlist)
	return s
}

// IsWhitelisted сообщает, может ли адрес выполнять команды администратора.
func (s *Settings) IsWhitelisted(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[addr]
	return ok
}

// IsBanned сообщает, игнорируются ли сообщения от адреса.
func (s *Settings) IsBanned(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banlist[addr]
	return ok
}

// SetWhitelist заменяет белый список.
func (s *Settings) SetWhitelist(numbers []string) []string {
	set := toSet(numbers)
	s.mu.Lock()
	s.whitelist = set
	s.mu.Unlock()
	return keys(set)
}

// SetBanlist заменяет список заблокированных.
func (s *Settings) SetBanlist(numbers []string) []string {
	set := toSet(numbers)
	s.mu.Lock()
	s.banlist = set
	s.mu.Unlock()
	return keys(set)
}

// Snapshot возвращает копии текущих списков.
func (s *Settings) Snapshot() (whitelist, banlist []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.whitelist), keys(s.banlist)
}

// toSet нормализует номера без суффикса чата.
func toSet(numbers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		set[address(n)] = struct{}{}
	}
	return set
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// address приводит номер к адресу чата; уже готовые адреса не меняются.
func address(n string) string {
	if strings.Contains(n, "@") {
		return n
	}
	return phone.Normalize(n)
}
