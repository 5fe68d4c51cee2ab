// Package nameres finalizes the net names of an elaborated design: globally
// unique names derived by minimum-disambiguating path prefixes, plus the
// net kind. Reference designators are assigned separately by
// schematic.AssignReferenceDesignators.
package nameres

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pro-utkarshM/picoplace/internal/schematic"
	"github.com/pro-utkarshM/picoplace/internal/value"
)

// NetInfo is the raw material for naming one net.
type NetInfo struct {
	ID         value.NetID
	Ports      []schematic.InstanceRef
	Explicit   string
	Properties map[string]schematic.AttributeValue
}

// netState carries the per-net intermediates of the naming pass.
type netState struct {
	info     *NetInfo
	baseName string
	// path is the shortest non-empty port instance path, as segments.
	path []string
	finalName string
}

// ResolveNets assigns every net a unique name and returns the finished
// nets in lexical name order.
//
// The algorithm: the base name is the trimmed explicit name when present,
// else the dotted shortest port path, else "N<id>". Nets sharing a base
// name strip their common leading path prefix and take the smallest number
// of leading tail segments that makes the group distinct; when no prefix
// length suffices, the full tail is used and remaining collisions get
// _1, _2, ... suffixes in encounter order.
func ResolveNets(infos []*NetInfo) ([]*schematic.Net, error) {
	states := make([]*netState, 0, len(infos))
	for _, info := range infos {
		st := &netState{info: info, path: shortestPortPath(info.Ports)}
		explicit := strings.TrimSpace(info.Explicit)
		switch {
		case explicit != "":
			st.baseName = explicit
		case len(st.path) > 0:
			st.baseName = strings.Join(st.path, ".")
		default:
			st.baseName = "N" + strconv.FormatInt(int64(info.ID), 10)
		}
		states = append(states, st)
	}

	// Group by base name; groups are processed in sorted order for
	// determinism, though members keep their encounter order.
	groups := map[string][]*netState{}
	var groupNames []string
	for _, st := range states {
		if _, ok := groups[st.baseName]; !ok {
			groupNames = append(groupNames, st.baseName)
		}
		groups[st.baseName] = append(groups[st.baseName], st)
	}
	sort.Strings(groupNames)

	for _, base := range groupNames {
		group := groups[base]
		if len(group) == 1 {
			group[0].finalName = group[0].baseName
			continue
		}
		disambiguate(group)
	}

	used := map[string]bool{}
	for _, st := range states {
		if used[st.finalName] {
			return nil, fmt.Errorf("internal error: duplicate generated net name: %s", st.finalName)
		}
		used[st.finalName] = true
	}

	sort.Slice(states, func(i, j int) bool { return states[i].finalName < states[j].finalName })

	nets := make([]*schematic.Net, 0, len(states))
	for _, st := range states {
		net := schematic.NewNet(KindFromProperties(st.info.Properties), st.finalName)
		net.Ports = append(net.Ports, st.info.Ports...)
		for k, v := range st.info.Properties {
			net.AddProperty(k, v)
		}
		nets = append(nets, net)
	}
	return nets, nil
}

// KindFromProperties derives the net kind from the "type" property.
func KindFromProperties(props map[string]schematic.AttributeValue) schematic.NetKind {
	if v, ok := props["type"]; ok {
		if s, ok := v.AsString(); ok {
			switch s {
			case "ground":
				return schematic.NetGround
			case "power":
				return schematic.NetPower
			}
		}
	}
	return schematic.NetNormal
}

func shortestPortPath(ports []schematic.InstanceRef) []string {
	var best []string
	bestLen := -1
	for _, p := range ports {
		if len(p.InstancePath) == 0 {
			continue
		}
		joined := strings.Join(p.InstancePath, ".")
		if bestLen < 0 || len(joined) < bestLen {
			best = p.InstancePath
			bestLen = len(joined)
		}
	}
	return best
}

// commonPrefixLen counts the leading path segments shared by every path.
func commonPrefixLen(paths [][]string) int {
	if len(paths) == 0 {
		return 0
	}
	idx := 0
	for {
		for _, p := range paths {
			if len(p) <= idx {
				return idx
			}
		}
		seg := paths[0][idx]
		for _, p := range paths[1:] {
			if p[idx] != seg {
				return idx
			}
		}
		idx++
	}
}

func disambiguate(group []*netState) {
	paths := make([][]string, len(group))
	for i, st := range group {
		paths[i] = st.path
	}
	cp := commonPrefixLen(paths)

	tails := make([][]string, len(group))
	maxTail := 0
	for i, st := range group {
		tails[i] = st.path[cp:]
		if len(tails[i]) > maxTail {
			maxTail = len(tails[i])
		}
	}

	candidates := make([]string, len(group))
	for k := 1; k <= maxTail; k++ {
		seen := map[string]bool{}
		dup := false
		for i, tail := range tails {
			take := k
			if take > len(tail) {
				take = len(tail)
			}
			prefix := strings.Join(tail[:take], ".")
			cand := group[i].baseName
			if prefix != "" {
				cand = prefix + "." + cand
			}
			if seen[cand] {
				dup = true
			}
			seen[cand] = true
			candidates[i] = cand
		}
		if !dup {
			for i, st := range group {
				st.finalName = candidates[i]
			}
			return
		}
	}

	// No prefix length separates the group: use the full tail and break the
	// remaining collisions with numeric suffixes in encounter order.
	counts := map[string]int{}
	for i, tail := range tails {
		name := group[i].baseName
		if len(tail) > 0 {
			name = strings.Join(tail, ".") + "." + name
		}
		if n := counts[name]; n > 0 {
			counts[name] = n + 1
			name = name + "_" + strconv.Itoa(n)
		} else {
			counts[name] = 1
		}
		group[i].finalName = name
	}
}
