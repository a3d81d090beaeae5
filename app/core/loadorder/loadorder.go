// Package loadorder produces a deterministic suggested ordering of enabled
// mod entries. The order respects the masterlist's load-after edges within
// each extension class and the convention that masters precede plugins
// precede light plugins.
package loadorder

import (
	"sort"

	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/core/modlist"
	"github.com/loadstone-dev/loadstone/app/core/sets"
)

// ReasonCycle marks edges dropped because the load-after subgraph contained
// a cycle.
const ReasonCycle = "cycle"

// DroppedEdge records one load-after edge the optimizer could not satisfy.
// Later names the entry that should have loaded after Earlier.
type DroppedEdge struct {
	Later   string `json:"later"`
	Earlier string `json:"earlier"`
	Reason  string `json:"reason"`
}

// Result is the suggested permutation of the enabled entries plus any edges
// dropped to produce it.
type Result struct {
	Order   []string      `json:"order"`
	Dropped []DroppedEdge `json:"dropped,omitempty"`
}

// Suggest orders the enabled entries of a list. The result is a permutation
// of the enabled entries (display names, same multiset) and is identical for
// identical inputs. Cross-bucket load-after edges are ignored: the coarse
// master → plugin → light rule already decides those.
func Suggest(list modlist.List, view *masterlist.View) Result {
	buckets := make(map[modlist.Ext][]modlist.Record, 3)
	for _, record := range list.Records {
		if !record.Enabled {
			continue
		}
		class := bucketOf(record.Ext)
		buckets[class] = append(buckets[class], record)
	}

	var result Result
	for _, class := range []modlist.Ext{modlist.ExtMaster, modlist.ExtPlugin, modlist.ExtLight} {
		order, dropped := sortBucket(buckets[class], view)
		result.Order = append(result.Order, order...)
		result.Dropped = append(result.Dropped, dropped...)
	}
	return result
}

// bucketOf assigns an extension to its ordering class. Unknown and archive
// extensions join the plugin bucket; they carry no edges and order
// lexicographically.
func bucketOf(ext modlist.Ext) modlist.Ext {
	switch ext {
	case modlist.ExtMaster, modlist.ExtLight:
		return ext
	default:
		return modlist.ExtPlugin
	}
}

// node is one bucket member during the topological sort.
type node struct {
	name     string
	display  string
	priority int

	indegree   int
	dependents []string
}

// sortBucket runs Kahn's algorithm over the bucket's load-after subgraph.
// Among ready candidates a higher declared masterlist weight wins, then the
// lexicographically smaller canonical name, so the sort is total.
func sortBucket(records []modlist.Record, view *masterlist.View) ([]string, []DroppedEdge) {
	if len(records) == 0 {
		return nil, nil
	}

	nodes := make(map[string]*node, len(records))
	byEntry := make(map[string][]string, len(records))
	for _, record := range records {
		key := resolveKey(view, record.Name)
		nodes[record.Name] = &node{
			name:     record.Name,
			display:  record.Display,
			priority: declaredPriority(view, key),
		}
		byEntry[key] = append(byEntry[key], record.Name)
	}

	for _, record := range records {
		for _, earlierEntry := range view.LoadAfter[resolveKey(view, record.Name)] {
			for _, earlier := range byEntry[earlierEntry] {
				if earlier == record.Name {
					continue
				}
				nodes[earlier].dependents = append(nodes[earlier].dependents, record.Name)
				nodes[record.Name].indegree++
			}
		}
	}

	var ready []*node
	for _, record := range records {
		if candidate := nodes[record.Name]; candidate.indegree == 0 {
			ready = append(ready, candidate)
		}
	}

	order := make([]string, 0, len(records))
	emitted := make(sets.Set, len(records))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if precedes(ready[i], ready[best]) {
				best = i
			}
		}
		next := ready[best]
		ready[best] = ready[len(ready)-1]
		ready = ready[:len(ready)-1]

		order = append(order, next.display)
		emitted.Add(next.name)

		for _, dependent := range next.dependents {
			follower := nodes[dependent]
			follower.indegree--
			if follower.indegree == 0 {
				ready = append(ready, follower)
			}
		}
	}

	if len(order) == len(records) {
		return order, nil
	}

	// A cycle: the remaining edges cannot all be satisfied. Drop and report
	// each of them, then flush the stuck nodes lexicographically so the
	// output stays a deterministic permutation.
	var remaining []*node
	for _, record := range records {
		if !emitted.Has(record.Name) {
			remaining = append(remaining, nodes[record.Name])
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].name < remaining[j].name })

	var dropped []DroppedEdge
	for _, earlier := range remaining {
		for _, dependent := range earlier.dependents {
			if emitted.Has(dependent) {
				continue
			}
			dropped = append(dropped, DroppedEdge{
				Later:   nodes[dependent].display,
				Earlier: earlier.display,
				Reason:  ReasonCycle,
			})
		}
	}
	sort.Slice(dropped, func(i, j int) bool {
		if dropped[i].Later != dropped[j].Later {
			return dropped[i].Later < dropped[j].Later
		}
		return dropped[i].Earlier < dropped[j].Earlier
	})

	for _, stuck := range remaining {
		order = append(order, stuck.display)
	}
	return order, dropped
}

// precedes reports whether a should be emitted before b when both are ready.
func precedes(a, b *node) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.name < b.name
}

// declaredPriority returns the entry's explicit masterlist weight. Entries
// without one, and names the masterlist does not know, tie at zero and the
// lexicographic rule decides. Derived tag weights stay out of the ordering;
// they only measure pressure.
func declaredPriority(view *masterlist.View, key string) int {
	if entry, ok := view.Entries[key]; ok && entry.Weight != nil {
		return *entry.Weight
	}
	return 0
}

func resolveKey(view *masterlist.View, name string) string {
	if canonical, ok := view.NameIndex[name]; ok {
		return canonical
	}
	return name
}
