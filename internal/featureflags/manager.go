// Package featureflags gates optional behaviour per user.
package featureflags

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// PersonalizedFeed enables the tag-affinity branch of the first feed page.
const PersonalizedFeed = "personalized_feed"

type mode int

const (
	modeOff mode = iota
	modeOn
	modeRollout
)

// rule is one parsed flag: fully on, fully off, or on for a percentage of users.
type rule struct {
	raw     string
	mode    mode
	percent uint64
}

// Manager evaluates flags declared as "name=on,other=off,canary=25%".
// Unknown flags are off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		r, ok := parseRule(value)
		if !ok {
			continue
		}
		rules[name] = r
	}
	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, mode: modeOn}, true
	case "off", "false", "0":
		return rule{raw: value, mode: modeOff}, true
	}
	pct, found := strings.CutSuffix(value, "%")
	if !found {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	switch {
	case n <= 0:
		return rule{raw: value, mode: modeOff}, true
	case n >= 100:
		return rule{raw: value, mode: modeOn}, true
	}
	return rule{raw: value, mode: modeRollout, percent: uint64(n)}, true
}

// Enabled reports whether name is on for userID. Percentage rollouts place
// each user in a stable bucket, and anonymous viewers (userID 0) are never
// part of a partial rollout.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	if !ok {
		return false
	}
	switch r.mode {
	case modeOn:
		return true
	case modeRollout:
		return userID != 0 && bucket(name, userID) < r.percent
	}
	return false
}

// State is the configured value of a flag and its result for one user.
type State struct {
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Describe evaluates every configured flag for userID.
func (m *Manager) Describe(userID uint) map[string]State {
	if m == nil {
		return map[string]State{}
	}
	out := make(map[string]State, len(m.rules))
	for name, r := range m.rules {
		out[name] = State{Value: r.raw, Enabled: m.Enabled(name, userID)}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) uint64 {
	return xxhash.Sum64String(name+":"+strconv.FormatUint(uint64(userID), 10)) % 100
}
