package quest

import (
	"fmt"
	"sort"
	"strings"

	id "heirloom/pkg/domain"
)

// GraphError reports which milestones made a batch unacceptable. The whole
// write is rejected; callers never apply a partial batch.
type GraphError struct {
	Reason    string
	Offending []int // order indices of the offending milestones
}

func (e *GraphError) Error() string {
	if len(e.Offending) == 0 {
		return e.Reason
	}
	idx := make([]string, len(e.Offending))
	for i, n := range e.Offending {
		idx[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s (milestones at index %s)", e.Reason, strings.Join(idx, ", "))
}

// ValidateGraph checks a milestone batch before persistence:
//
//   - order indices, after sorting, form 0..n-1 with no gaps or duplicates
//   - the milestone at index 0 has no prerequisites
//   - every prerequisite resolves to a milestone in the same batch
//   - prerequisites only point at strictly smaller order indices
//   - the prerequisite graph is acyclic (Kahn's algorithm)
//
// Pure: no side effects, safe to call on unsaved batches.
func ValidateGraph(ms []Milestone) error {
	if len(ms) == 0 {
		return &GraphError{Reason: "milestone batch must not be empty"}
	}

	byIndex := make(map[int]*Milestone, len(ms))
	var dupes []int
	for i := range ms {
		m := &ms[i]
		if m.Value < 0 {
			return &GraphError{Reason: "unlock value must be non-negative", Offending: []int{m.OrderIndex}}
		}
		if _, seen := byIndex[m.OrderIndex]; seen {
			dupes = append(dupes, m.OrderIndex)
			continue
		}
		byIndex[m.OrderIndex] = m
	}
	if len(dupes) > 0 {
		sort.Ints(dupes)
		return &GraphError{Reason: "duplicate order index", Offending: dupes}
	}
	var gaps []int
	for i := 0; i < len(ms); i++ {
		if _, ok := byIndex[i]; !ok {
			gaps = append(gaps, i)
		}
	}
	if len(gaps) > 0 {
		return &GraphError{Reason: "order indices must form a contiguous 0..n-1 range", Offending: gaps}
	}

	byID := MilestonesByID(ms)

	if root := byIndex[0]; len(root.Prerequisites) > 0 {
		return &GraphError{Reason: "the first milestone must have no prerequisites", Offending: []int{0}}
	}

	var dangling, forward []int
	for i := range ms {
		m := &ms[i]
		for _, prereq := range m.Prerequisites {
			dep, ok := byID[prereq]
			if !ok {
				dangling = append(dangling, m.OrderIndex)
				continue
			}
			if dep.OrderIndex >= m.OrderIndex {
				forward = append(forward, m.OrderIndex)
			}
		}
	}
	if len(dangling) > 0 {
		sort.Ints(dangling)
		return &GraphError{Reason: "prerequisite references a milestone outside this batch", Offending: dangling}
	}
	if len(forward) > 0 {
		sort.Ints(forward)
		return &GraphError{Reason: "prerequisite must reference a strictly smaller order index", Offending: forward}
	}

	// The smaller-index rule above already rules out cycles, but the batch
	// came from an external caller: run Kahn's algorithm over the adjacency
	// lists anyway so a future relaxation of the ordering rule cannot
	// silently admit a cycle.
	if cyclic := findCycleMembers(ms, byID); len(cyclic) > 0 {
		return &GraphError{Reason: "prerequisite cycle detected", Offending: cyclic}
	}

	return nil
}

// findCycleMembers runs Kahn's algorithm and returns the order indices of
// milestones left on a cycle, or nil when the graph is a DAG.
func findCycleMembers(ms []Milestone, byID map[id.MilestoneID]*Milestone) []int {
	indegree := make(map[id.MilestoneID]int, len(ms))
	dependents := make(map[id.MilestoneID][]id.MilestoneID, len(ms))
	for i := range ms {
		m := &ms[i]
		indegree[m.ID] += 0
		for _, prereq := range m.Prerequisites {
			indegree[m.ID]++
			dependents[prereq] = append(dependents[prereq], m.ID)
		}
	}

	queue := make([]id.MilestoneID, 0, len(ms))
	for mid, deg := range indegree {
		if deg == 0 {
			queue = append(queue, mid)
		}
	}

	visited := 0
	for len(queue) > 0 {
		mid := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[mid] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited == len(ms) {
		return nil
	}

	var cyclic []int
	for mid, deg := range indegree {
		if deg > 0 {
			cyclic = append(cyclic, byID[mid].OrderIndex)
		}
	}
	sort.Ints(cyclic)
	return cyclic
}

// NormalizeOrder sorts a batch by order index and renumbers it contiguously
// from zero. Used after a milestone delete so the remaining batch keeps the
// 0..n-1 invariant; prerequisite sets are pruned of the removed IDs by the
// caller before renumbering.
func NormalizeOrder(ms []Milestone) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].OrderIndex < ms[j].OrderIndex })
	for i := range ms {
		ms[i].OrderIndex = i
	}
}

// RemoveMilestone drops the milestone with the given ID from the batch,
// removes it from every sibling's prerequisite set, and renumbers the rest.
func RemoveMilestone(ms []Milestone, victim id.MilestoneID) []Milestone {
	out := make([]Milestone, 0, len(ms))
	for i := range ms {
		if ms[i].ID == victim {
			continue
		}
		m := ms[i]
		if len(m.Prerequisites) > 0 {
			kept := make([]id.MilestoneID, 0, len(m.Prerequisites))
			for _, prereq := range m.Prerequisites {
				if prereq != victim {
					kept = append(kept, prereq)
				}
			}
			m.Prerequisites = kept
		}
		out = append(out, m)
	}
	NormalizeOrder(out)
	return out
}
