package jumptarget

import (
	"container/heap"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/retroenv/retrogolib/set"
)

// ErrEmpty is returned when the best target of an empty worklist is requested.
// Callers are expected to check Empty first, receiving it indicates a bug.
var ErrEmpty = errors.New("jump target worklist is empty")

// key identifies a target inside the worklist, targets with the same key
// are considered duplicates.
type key struct {
	typ     Type
	address Address
}

// Targets is a deduplicating priority worklist of jump targets.
// It is not safe for concurrent use.
type Targets struct {
	queue targetHeap
	added set.Set[key]
}

// NewTargets returns an empty worklist.
func NewTargets() *Targets {
	return &Targets{
		added: set.New[key](),
	}
}

// Push adds a target that was discovered from the given address.
// Pushing a type and address combination that is already queued is a no-op,
// the first pushed target keeps its mode and origin.
// It returns whether the target was added.
func (t *Targets) Push(address Address, typ Type, mode Mode, from Address) bool {
	return t.push(New(address, typ, mode, from))
}

// PushFromInstruction adds a target that was discovered from the given
// decoded instruction. Duplicates are handled like in Push.
func (t *Targets) PushFromInstruction(address Address, typ Type, mode Mode, from Instruction) bool {
	return t.push(NewFromInstruction(address, typ, mode, from))
}

func (t *Targets) push(target Target) bool {
	k := key{typ: target.typ, address: target.address}
	if t.added.Contains(k) {
		return false
	}
	t.added.Add(k)
	heap.Push(&t.queue, target)
	return true
}

// Top returns the target with the highest priority without removing it.
func (t *Targets) Top() (Target, error) {
	if len(t.queue) == 0 {
		return Target{}, ErrEmpty
	}
	return t.queue[0], nil
}

// Pop removes and returns the target with the highest priority.
func (t *Targets) Pop() (Target, error) {
	if len(t.queue) == 0 {
		return Target{}, ErrEmpty
	}
	target := heap.Pop(&t.queue).(Target)
	delete(t.added, key{typ: target.typ, address: target.address})
	return target, nil
}

// Empty returns whether no targets are queued.
func (t *Targets) Empty() bool {
	return len(t.queue) == 0
}

// Len returns the number of queued targets.
func (t *Targets) Len() int {
	return len(t.queue)
}

// Clear removes all queued targets.
func (t *Targets) Clear() {
	t.queue = nil
	t.added = set.New[key]()
}

// All returns an iterator over all queued targets in priority order.
// Every iteration works on a snapshot of the worklist at the time the
// iteration starts. It is meant for diagnostics, decoding should use Pop.
func (t *Targets) All() iter.Seq[Target] {
	return func(yield func(Target) bool) {
		sorted := slices.Clone(t.queue)
		slices.SortFunc(sorted, Compare)
		for _, target := range sorted {
			if !yield(target) {
				return
			}
		}
	}
}

func (t *Targets) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "jump targets (%d):\n", len(t.queue))
	for target := range t.All() {
		sb.WriteString("\t")
		sb.WriteString(target.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// targetHeap implements heap.Interface ordered by Compare.
type targetHeap []Target

func (h targetHeap) Len() int           { return len(h) }
func (h targetHeap) Less(i, j int) bool { return Compare(h[i], h[j]) < 0 }
func (h targetHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *targetHeap) Push(x any) {
	*h = append(*h, x.(Target))
}

func (h *targetHeap) Pop() any {
	old := *h
	n := len(old)
	target := old[n-1]
	*h = old[:n-1]
	return target
}
