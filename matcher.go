package quartz

import "strings"

// StringOperator is the comparison a GroupMatcher applies to a group
// name.
type StringOperator int

const (
	OpEquals StringOperator = iota
	OpStartsWith
	OpEndsWith
	OpContains
	OpAnything
)

// GroupMatcher is a predicate over a group name. JobKey and TriggerKey
// matching both reduce to group matching, so a single matcher family serves GetJobKeys, GetTriggerKeys,
// PauseTriggers, PauseJobs and their resume counterparts.
type GroupMatcher interface {
	Matches(group string) bool
}

type groupOpMatcher struct {
	op    StringOperator
	group string
}

func (m *groupOpMatcher) Matches(group string) bool {
	switch m.op {
	case OpEquals:
		return group == m.group
	case OpStartsWith:
		return strings.HasPrefix(group, m.group)
	case OpEndsWith:
		return strings.HasSuffix(group, m.group)
	case OpContains:
		return strings.Contains(group, m.group)
	case OpAnything:
		return true
	default:
		return false
	}
}

// GroupEquals matches the given group name exactly. The store indexes
// groups by name, so this is the matcher variant that gets a direct
// map lookup instead of a scan.
func GroupEquals(group string) GroupMatcher { return &groupOpMatcher{OpEquals, group} }

func GroupStartsWith(prefix string) GroupMatcher { return &groupOpMatcher{OpStartsWith, prefix} }

func GroupEndsWith(suffix string) GroupMatcher { return &groupOpMatcher{OpEndsWith, suffix} }

func GroupContains(substr string) GroupMatcher { return &groupOpMatcher{OpContains, substr} }

// AnyGroup matches every group. A listener registered with no matchers
// also matches every group (see matches in listener.go).
func AnyGroup() GroupMatcher { return &groupOpMatcher{op: OpAnything} }

type andGroupMatcher struct{ a, b GroupMatcher }

func (m *andGroupMatcher) Matches(group string) bool { return m.a.Matches(group) && m.b.Matches(group) }

type orGroupMatcher struct{ a, b GroupMatcher }

func (m *orGroupMatcher) Matches(group string) bool { return m.a.Matches(group) || m.b.Matches(group) }

type notGroupMatcher struct{ a GroupMatcher }

func (m *notGroupMatcher) Matches(group string) bool { return !m.a.Matches(group) }

// And, Or and Not compose matchers.
func And(a, b GroupMatcher) GroupMatcher { return &andGroupMatcher{a, b} }

func Or(a, b GroupMatcher) GroupMatcher { return &orGroupMatcher{a, b} }

func Not(a GroupMatcher) GroupMatcher { return &notGroupMatcher{a} }

// equalsFastPath reports the literal group name an EQUALS matcher
// targets, so the store can use a direct index lookup instead of
// iterating every known group.
func equalsFastPath(m GroupMatcher) (string, bool) {
	if om, ok := m.(*groupOpMatcher); ok && om.op == OpEquals {
		return om.group, true
	}

	return "", false
}
