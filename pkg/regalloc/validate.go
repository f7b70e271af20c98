package regalloc

import (
	"fmt"
	"strings"
)

// Violation is one invariant the allocator's output failed to satisfy.
// Mirrors the teacher's amd64.ValidationError shape (a position plus a
// message) generalized from an assembly line number to a program
// position.
type Violation struct {
	Pos     int
	Message string
}

func (v Violation) String() string { return fmt.Sprintf("pos %d: %s", v.Pos, v.Message) }

// Validator accumulates invariant violations across a full pass over one
// function's finished allocation before reporting them together, the same
// accumulate-then-report shape as the teacher's amd64.Validator.Validate.
type Validator struct {
	violations []Violation
}

// invariantsHold runs the five invariant checks below against a finished
// allocation and returns nil if all of them passed, or an error
// describing every violation found (not just the first) so a caller
// debugging a bad allocation sees the whole picture at once.
func (a *Allocator) invariantsHold() error {
	v := &Validator{}
	v.checkNoLiveConflicts(a)
	v.checkUseConstraints(a)
	v.checkArgumentChainContiguity(a)
	v.checkMoveExceptionPlacement(a)
	v.checkRematerializationEconomy(a)

	if len(v.violations) == 0 {
		return nil
	}
	if a.opts.Debug {
		panic(&InternalError{Method: a.fn.Name, Reason: v.String()})
	}
	return &InternalError{Method: a.fn.Name, Reason: v.String()}
}

func (v *Validator) String() string {
	lines := make([]string, len(v.violations))
	for i, vi := range v.violations {
		lines[i] = vi.String()
	}
	return strings.Join(lines, "; ")
}

// checkNoLiveConflicts verifies no two intervals assigned the same
// register (and not spilled) overlap in their live ranges.
func (v *Validator) checkNoLiveConflicts(a *Allocator) {
	var assigned []*LiveInterval
	for _, li := range a.arena.intervals {
		if li.AssignedReg != noReg {
			assigned = append(assigned, li)
		}
	}
	for i := 0; i < len(assigned); i++ {
		for j := i + 1; j < len(assigned); j++ {
			x, y := assigned[i], assigned[j]
			if x.AssignedReg != y.AssignedReg {
				continue
			}
			if x.Value == y.Value {
				continue
			}
			if x.Intersects(y) {
				pos, _ := x.FirstIntersection(y)
				v.violations = append(v.violations, Violation{Pos: pos, Message: fmt.Sprintf(
					"register %d double-booked by %s and %s", x.AssignedReg, x.Value, y.Value)})
			}
		}
	}
}

// checkUseConstraints verifies every recorded use's register-width limit
// was honored by the register actually assigned there.
func (v *Validator) checkUseConstraints(a *Allocator) {
	for _, li := range a.arena.intervals {
		if li.AssignedReg == noReg {
			continue
		}
		for _, u := range li.Uses {
			if RegWidth(li.AssignedReg) >= u.Limit {
				v.violations = append(v.violations, Violation{Pos: u.Pos, Message: fmt.Sprintf(
					"%s assigned register %d exceeding its limit %d", li.Value, li.AssignedReg, u.Limit)})
			}
		}
	}
}

// checkArgumentChainContiguity verifies every declared argument chain
// still lands in consecutive registers after remapping.
func (v *Validator) checkArgumentChainContiguity(a *Allocator) {
	for _, arg := range a.fn.Args {
		if arg.NextConsecutive == nil {
			continue
		}
		r1, ok1 := a.finalRegisterOf(arg)
		r2, ok2 := a.finalRegisterOf(arg.NextConsecutive)
		if !ok1 || !ok2 {
			continue
		}
		if r2 != r1+arg.Slots() {
			v.violations = append(v.violations, Violation{Pos: 0, Message: fmt.Sprintf(
				"argument chain %s->%s not contiguous: %d then %d", arg, arg.NextConsecutive, r1, r2)})
		}
	}
}

// checkMoveExceptionPlacement verifies every catch handler's first
// instruction is the move-exception that defines its handler value.
func (v *Validator) checkMoveExceptionPlacement(a *Allocator) {
	for _, b := range a.fn.Blocks {
		if !b.IsCatchHandler {
			continue
		}
		if len(b.Instructions) == 0 || b.Instructions[0].Op != OpMoveException {
			v.violations = append(v.violations, Violation{Pos: b.Start, Message: fmt.Sprintf(
				"catch handler block starting at %d does not open with move-exception", b.Start)})
		}
	}
}

// checkRematerializationEconomy verifies a rematerializable interval
// never took a spill slot it didn't need: if every use after a given
// segment boundary can be satisfied by re-executing the constant, no
// slot should have been assigned.
func (v *Validator) checkRematerializationEconomy(a *Allocator) {
	for _, li := range a.arena.intervals {
		if li.Rematerializable && li.AssignedReg == noReg && li.SpillSlot != noSlot && len(li.Uses) == 0 {
			v.violations = append(v.violations, Violation{Pos: li.From(), Message: fmt.Sprintf(
				"%s holds an unused spill slot despite being rematerializable", li.Value)})
		}
	}
}
