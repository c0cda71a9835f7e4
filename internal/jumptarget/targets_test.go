package jumptarget

import (
	"errors"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

type testInstruction struct {
	address Address
}

func (i *testInstruction) Address() Address {
	return i.address
}

func TestTargets_PriorityOrdering(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x2000, Leftover, ModeDefault, Undefined)
	jts.Push(0x1000, BranchTaken, ModeDefault, Undefined)

	target, err := jts.Pop()
	assert.NoError(t, err)
	assert.Equal(t, Address(0x1000), target.Address())
	assert.Equal(t, BranchTaken, target.Type())
}

func TestTargets_AllTypesInPriorityOrder(t *testing.T) {
	jts := NewTargets()
	types := Types()

	// push in reverse priority order with descending addresses to make sure
	// the type wins over the address
	for i := len(types) - 1; i >= 0; i-- {
		jts.Push(Address(0x100*(len(types)-i)), types[i], ModeDefault, Undefined)
	}

	for _, expected := range types {
		target, err := jts.Pop()
		assert.NoError(t, err)
		assert.Equal(t, expected, target.Type())
	}
	assert.True(t, jts.Empty())
}

func TestTargets_AddressTieBreak(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x3000, CallTarget, ModeDefault, Undefined)
	jts.Push(0x1000, CallTarget, ModeDefault, Undefined)

	target, err := jts.Top()
	assert.NoError(t, err)
	assert.Equal(t, Address(0x1000), target.Address())
	assert.Equal(t, 2, jts.Len())
}

// A later push of an already queued type and address does not override the
// mode and origin of the first push. Whether it should is an open question,
// this test documents the current behavior.
func TestTargets_DuplicatePushKeepsFirst(t *testing.T) {
	jts := NewTargets()
	added := jts.Push(0x4000, SwitchCase, ModeX86_32, 0x100)
	assert.True(t, added)
	added = jts.Push(0x4000, SwitchCase, ModeX86_64, 0x200)
	assert.False(t, added)
	added = jts.PushFromInstruction(0x4000, SwitchCase, ModeARM64, &testInstruction{address: 0x300})
	assert.False(t, added)

	assert.Equal(t, 1, jts.Len())
	target, err := jts.Pop()
	assert.NoError(t, err)
	assert.Equal(t, ModeX86_32, target.Mode())
	assert.Equal(t, Address(0x100), target.FromAddress())
}

func TestTargets_SameAddressDifferentTypes(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x5000, Leftover, ModeDefault, Undefined)
	jts.Push(0x5000, CallTarget, ModeDefault, Undefined)
	assert.Equal(t, 2, jts.Len())

	first, err := jts.Pop()
	assert.NoError(t, err)
	assert.Equal(t, CallTarget, first.Type())

	second, err := jts.Pop()
	assert.NoError(t, err)
	assert.Equal(t, Leftover, second.Type())
	assert.Equal(t, Address(0x5000), second.Address())
}

func TestTargets_DrainCompleteness(t *testing.T) {
	jts := NewTargets()
	pushed := map[key]struct{}{}
	addresses := []Address{0x9000, 0x10, 0x4000, 0x10, 0x7777, 0x2, 0xffff}
	types := Types()
	for i, address := range addresses {
		typ := types[i%len(types)]
		jts.Push(address, typ, ModeDefault, Undefined)
		pushed[key{typ: typ, address: address}] = struct{}{}
	}
	assert.Equal(t, len(pushed), jts.Len())

	var previous Target
	popped := map[key]struct{}{}
	for i := 0; !jts.Empty(); i++ {
		target, err := jts.Pop()
		assert.NoError(t, err)

		k := key{typ: target.Type(), address: target.Address()}
		_, seen := popped[k]
		assert.False(t, seen)
		popped[k] = struct{}{}

		if i > 0 {
			assert.True(t, Compare(previous, target) < 0)
		}
		previous = target
	}

	assert.Equal(t, len(pushed), len(popped))
	assert.True(t, jts.Empty())
	assert.Equal(t, 0, jts.Len())
}

func TestTargets_EmptyPrecondition(t *testing.T) {
	jts := NewTargets()
	assert.True(t, jts.Empty())

	_, err := jts.Top()
	assert.True(t, errors.Is(err, ErrEmpty))

	_, err = jts.Pop()
	assert.True(t, errors.Is(err, ErrEmpty))

	jts.Push(0x10, EntryPoint, ModeDefault, Undefined)
	_, err = jts.Pop()
	assert.NoError(t, err)
	_, err = jts.Pop()
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestTargets_Clear(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x10, EntryPoint, ModeDefault, Undefined)
	jts.Push(0x20, BranchTaken, ModeDefault, Undefined)
	jts.Push(0x30, Leftover, ModeDefault, Undefined)

	jts.Clear()
	assert.True(t, jts.Empty())
	assert.Equal(t, 0, jts.Len())

	// the cleared keys can be pushed again
	assert.True(t, jts.Push(0x10, EntryPoint, ModeDefault, Undefined))
	assert.Equal(t, 1, jts.Len())
}

func TestTargets_PushAfterPop(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x10, BranchTaken, ModeDefault, Undefined)
	_, err := jts.Pop()
	assert.NoError(t, err)

	assert.True(t, jts.Push(0x10, BranchTaken, ModeDefault, Undefined))
	assert.Equal(t, 1, jts.Len())
}

func TestTargets_All(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x300, ReturnTarget, ModeDefault, Undefined)
	jts.Push(0x100, BranchNotTaken, ModeDefault, Undefined)
	jts.Push(0x200, ReturnTarget, ModeDefault, Undefined)

	expected := []Address{0x100, 0x200, 0x300}

	// iterating twice returns the same sequence and does not consume targets
	for range 2 {
		var addresses []Address
		for target := range jts.All() {
			addresses = append(addresses, target.Address())
		}
		assert.Equal(t, expected, addresses)
	}
	assert.Equal(t, 3, jts.Len())

	// stopping early is supported
	count := 0
	for range jts.All() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestTargets_String(t *testing.T) {
	jts := NewTargets()
	jts.Push(0x8000, EntryPoint, Mode6502, Undefined)
	jts.PushFromInstruction(0x8010, CallTarget, Mode6502, &testInstruction{address: 0x8003})

	s := jts.String()
	assert.True(t, strings.HasPrefix(s, "jump targets (2):\n"))
	assert.Contains(t, s, "0x8010 (CallTarget, 6502) from 0x8003")
	assert.Contains(t, s, "0x8000 (EntryPoint, 6502) from UNDEFINED")
	assert.True(t, strings.Index(s, "0x8010") < strings.Index(s, "0x8000"))
}
