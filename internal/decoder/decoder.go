// Package decoder implements the control flow directed decoding driver. It pulls
// the most promising jump target from the worklist, decodes the linear run of
// instructions starting at it and feeds the discovered jump targets back.
package decoder

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrodecode/internal/memory"
	"github.com/retroenv/retrodecode/internal/options"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

// Memory is the mapped address space that gets decoded.
type Memory interface {
	arch.Memory
	// Segments returns the mapped memory segments sorted by address.
	Segments() []memory.Segment
}

// Decoder follows the execution flow of a binary.
type Decoder struct {
	logger   *log.Logger
	mem      Memory
	decoders map[jumptarget.Mode]arch.Decoder
	options  options.Decoder

	targets *jumptarget.Targets

	instructions map[jumptarget.Address]*arch.Instruction
	covered      map[jumptarget.Address]jumptarget.Address // byte address to instruction start
	labels       map[jumptarget.Address]jumptarget.Type
	undecodable  set.Set[jumptarget.Address]
	edges        []Edge
	stats        Stats

	leftover leftoverCursor
}

// leftoverCursor is the position that the search for undecoded gaps resumes
// at. Bytes before it are decoded code or undecodable and stay that way.
type leftoverCursor struct {
	segment int
	offset  int
	scanned int // number of examined bytes
}

// New returns a new decoder for the given memory. Every passed architecture
// decoder is registered for all modes that it supports.
func New(logger *log.Logger, mem Memory, opts options.Decoder, decoders ...arch.Decoder) (*Decoder, error) {
	d := &Decoder{
		logger:       logger,
		mem:          mem,
		decoders:     map[jumptarget.Mode]arch.Decoder{},
		options:      opts,
		targets:      jumptarget.NewTargets(),
		instructions: map[jumptarget.Address]*arch.Instruction{},
		covered:      map[jumptarget.Address]jumptarget.Address{},
		labels:       map[jumptarget.Address]jumptarget.Type{},
		undecodable:  set.New[jumptarget.Address](),
		stats:        newStats(),
	}

	for _, dec := range decoders {
		for _, mode := range dec.Modes() {
			if _, ok := d.decoders[mode]; ok {
				return nil, fmt.Errorf("multiple decoders registered for mode %s", mode)
			}
			d.decoders[mode] = dec
		}
	}

	if _, ok := d.decoders[opts.DefaultMode]; !ok {
		return nil, fmt.Errorf("no decoder registered for default mode %s", opts.DefaultMode)
	}
	return d, nil
}

// AddEntryPoint adds an entry point that decoding starts from. A default mode
// entry point is decoded using the configured default mode.
func (d *Decoder) AddEntryPoint(address jumptarget.Address, mode jumptarget.Mode) error {
	if !d.mem.Contains(address) {
		return fmt.Errorf("entry point %s: %w", address, arch.ErrOutOfRange)
	}
	d.targets.Push(address, jumptarget.EntryPoint, mode, jumptarget.Undefined)
	return nil
}

// Run processes jump targets until the worklist is exhausted and returns the
// decoding result. The worklist is cleared when Run returns.
func (d *Decoder) Run(ctx context.Context) (*Result, error) {
	defer d.targets.Clear()

	for {
		for !d.targets.Empty() {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("decoding interrupted: %w", err)
			}

			target, err := d.targets.Pop()
			if err != nil {
				return nil, fmt.Errorf("getting next jump target: %w", err)
			}
			d.processTarget(target)
		}

		if !d.options.Leftover || !d.pushLeftover() {
			break
		}
	}

	return d.result(), nil
}

// processTarget decodes the linear run of instructions starting at a jump target.
func (d *Decoder) processTarget(target jumptarget.Target) {
	address := target.Address()
	d.logger.Debug("Processing jump target",
		log.Stringer("address", address),
		log.Stringer("type", target.Type()),
		log.Stringer("from", target.FromAddress()))

	d.stats.Targets[target.Type()]++

	if _, ok := d.instructions[address]; ok {
		d.addLabel(address, target.Type())
		return // already decoded
	}
	if start, ok := d.covered[address]; ok {
		d.logger.Debug("Jump into instruction detected",
			log.Stringer("address", address),
			log.Stringer("instruction", start),
			log.Stringer("from", target.FromAddress()))
		d.stats.JumpsIntoInstruction++
		return
	}

	mode := d.resolveMode(target.Mode())
	dec, ok := d.decoders[mode]
	if !ok {
		d.logger.Warn("No decoder registered for mode",
			log.Stringer("mode", mode),
			log.Stringer("address", address))
		return
	}

	if d.decodeRun(dec, address, mode) {
		d.addLabel(address, target.Type())
	}
}

// decodeRun decodes instructions starting at the given address until an
// instruction terminates the run, already decoded code is reached or decoding
// fails. It returns whether the first instruction was decoded.
func (d *Decoder) decodeRun(dec arch.Decoder, address jumptarget.Address, mode jumptarget.Mode) bool {
	for first := true; ; first = false {
		if _, ok := d.instructions[address]; ok {
			return !first
		}
		if start, ok := d.covered[address]; ok {
			d.logger.Debug("Execution flows into instruction",
				log.Stringer("address", address),
				log.Stringer("instruction", start))
			d.stats.JumpsIntoInstruction++
			return !first
		}

		ins, err := dec.Decode(d.mem, address, mode)
		if err != nil {
			d.logger.Debug("Decoding failed",
				log.Stringer("address", address),
				log.Err(err))
			d.markUndecodable(address)
			return !first
		}

		if start, ok := d.overlap(ins); ok {
			d.logger.Debug("Instruction overlaps decoded instruction",
				log.Stringer("address", address),
				log.Stringer("instruction", start))
			d.markUndecodable(address)
			return !first
		}

		d.addInstruction(ins)
		d.pushSuccessors(ins)

		if ins.Terminates {
			return true
		}
		address = ins.Next()
		if !d.mem.Contains(address) {
			return true
		}
	}
}

// pushSuccessors adds the jump targets discovered by an instruction to the
// worklist. Targets outside of mapped memory are dropped.
func (d *Decoder) pushSuccessors(ins *arch.Instruction) {
	for _, successor := range ins.Successors {
		if !d.mem.Contains(successor.Address) {
			d.logger.Debug("Dropping jump target outside of mapped memory",
				log.Stringer("address", successor.Address),
				log.Stringer("type", successor.Type),
				log.Stringer("from", ins.Address()))
			d.stats.Dropped++
			continue
		}

		d.edges = append(d.edges, Edge{
			From: ins.Address(),
			To:   successor.Address,
			Type: successor.Type,
		})
		d.targets.PushFromInstruction(successor.Address, successor.Type, successor.Mode, ins)
	}
}

// pushLeftover pushes the lowest address of mapped memory that is neither
// decoded code nor known to be undecodable. Processing the pushed target
// decodes or marks that address, so the next call continues behind it. It
// returns whether a target was pushed.
func (d *Decoder) pushLeftover() bool {
	segments := d.mem.Segments()
	cur := &d.leftover
	for ; cur.segment < len(segments); cur.segment, cur.offset = cur.segment+1, 0 {
		segment := segments[cur.segment]
		for ; cur.offset < len(segment.Data); cur.offset++ {
			cur.scanned++
			address := segment.Base + jumptarget.Address(cur.offset)
			if d.isCovered(address) || d.undecodable.Contains(address) {
				continue
			}
			return d.targets.Push(address, jumptarget.Leftover, d.options.DefaultMode, jumptarget.Undefined)
		}
	}
	return false
}

func (d *Decoder) addInstruction(ins *arch.Instruction) {
	d.instructions[ins.Address()] = ins
	for i := range ins.Size() {
		address := ins.Address() + jumptarget.Address(i)
		d.covered[address] = ins.Address()
		delete(d.undecodable, address)
	}
}

// addLabel sets the label type of an address, the highest priority type wins.
func (d *Decoder) addLabel(address jumptarget.Address, typ jumptarget.Type) {
	existing, ok := d.labels[address]
	if ok && existing.Priority() <= typ.Priority() {
		return
	}
	d.labels[address] = typ
}

// overlap returns the start of an already decoded instruction that the
// trailing bytes of the instruction overlap with.
func (d *Decoder) overlap(ins *arch.Instruction) (jumptarget.Address, bool) {
	for i := 1; i < ins.Size(); i++ {
		if start, ok := d.covered[ins.Address()+jumptarget.Address(i)]; ok {
			return start, true
		}
	}
	return 0, false
}

func (d *Decoder) markUndecodable(address jumptarget.Address) {
	if d.mem.Contains(address) && !d.isCovered(address) {
		d.undecodable.Add(address)
	}
}

func (d *Decoder) isCovered(address jumptarget.Address) bool {
	_, ok := d.covered[address]
	return ok
}

func (d *Decoder) resolveMode(mode jumptarget.Mode) jumptarget.Mode {
	if mode == jumptarget.ModeDefault {
		return d.options.DefaultMode
	}
	return mode
}

// result collects the decoded instructions and the remaining data bytes.
func (d *Decoder) result() *Result {
	res := &Result{
		Labels: d.labels,
		Edges:  d.edges,
		Stats:  d.stats,
	}

	for _, ins := range d.instructions {
		res.Instructions = append(res.Instructions, ins)
	}
	slices.SortFunc(res.Instructions, func(a, b *arch.Instruction) int {
		return cmp.Compare(a.Address(), b.Address())
	})

	for _, segment := range d.mem.Segments() {
		res.Data = append(res.Data, d.dataRanges(segment)...)
	}
	res.Stats.Instructions = len(res.Instructions)
	return res
}

// dataRanges returns the contiguous byte ranges of a segment that are not
// covered by decoded instructions.
func (d *Decoder) dataRanges(segment memory.Segment) []Data {
	var ranges []Data
	start := -1
	for i := 0; i <= len(segment.Data); i++ {
		isData := i < len(segment.Data) && !d.isCovered(segment.Base+jumptarget.Address(i))
		switch {
		case isData && start < 0:
			start = i
		case !isData && start >= 0:
			ranges = append(ranges, Data{
				Address: segment.Base + jumptarget.Address(start),
				Bytes:   segment.Data[start:i],
			})
			start = -1
		}
	}
	return ranges
}
