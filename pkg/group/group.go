// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package group models a peer group and a message tag shared by operations
// run over that group.
package group

import "fmt"

// ProcessGroup is an ordered, immutable sequence of peer ids. A group is
// never empty.
type ProcessGroup struct {
	members []int
}

// New builds a ProcessGroup from an explicit, ordered member list.
func New(members ...int) ProcessGroup {
	if len(members) == 0 {
		panic("group: a ProcessGroup must not be empty")
	}
	cp := make([]int, len(members))
	copy(cp, members)
	return ProcessGroup{members: cp}
}

// Range builds the ProcessGroup first..last inclusive.
func Range(first, last int) ProcessGroup {
	if last < first {
		panic("group: last < first")
	}
	members := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		members = append(members, i)
	}
	return ProcessGroup{members: members}
}

// Count returns the number of members in the group.
func (g ProcessGroup) Count() int {
	return len(g.members)
}

// At returns the i-th member (0-indexed, in construction order).
func (g ProcessGroup) At(i int) int {
	return g.members[i]
}

// Members returns a copy of the group's member ids, in order.
func (g ProcessGroup) Members() []int {
	cp := make([]int, len(g.members))
	copy(cp, g.members)
	return cp
}

// IndexOf returns the position of id within the group, or -1 if id is not
// a member.
func (g ProcessGroup) IndexOf(id int) int {
	for i, m := range g.members {
		if m == id {
			return i
		}
	}
	return -1
}

// Without returns a new group with the given peer id removed, if present.
// Removing the last member panics: a group must never become empty.
func (g ProcessGroup) Without(id int) ProcessGroup {
	out := make([]int, 0, len(g.members))
	for _, m := range g.members {
		if m != id {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		panic(fmt.Sprintf("group: removing %d would leave an empty group", id))
	}
	return ProcessGroup{members: out}
}

// Endpoint is a ProcessGroup plus the base tag operations over it use.
type Endpoint struct {
	group ProcessGroup
	tag   int
}

// NewEndpoint pairs a group with a base tag.
func NewEndpoint(g ProcessGroup, tag int) Endpoint {
	return Endpoint{group: g, tag: tag}
}

// Tag returns the endpoint's base tag.
func (e Endpoint) Tag() int {
	return e.tag
}

// Group returns the endpoint's peer group.
func (e Endpoint) Group() ProcessGroup {
	return e.group
}

// Count is a convenience shorthand for Group().Count().
func (e Endpoint) Count() int {
	return e.group.Count()
}
