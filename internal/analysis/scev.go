package analysis

import "attributor/internal/ir"

// ScevInfo is a best-effort scalar-evolution stand-in: for phis that are a
// simple affine induction (start plus constant step each iteration) it
// reports the closed form; everything else is "unknown" rather than an
// error, per spec §7's "missing analysis" degrading the dependent attribute
// instead of failing the whole run. Used by value-range's loop-header
// seeding (spec §4.4 "value-range").
type ScevInfo struct {
	affine map[*ir.Value]AffineRecurrence
}

// AffineRecurrence describes a value as Start + Step*iteration.
type AffineRecurrence struct {
	Start, Step int64
}

func ComputeScalarEvolution(fn *ir.Function, loops *Loops) *ScevInfo {
	s := &ScevInfo{affine: map[*ir.Value]AffineRecurrence{}}
	for _, l := range loops.All() {
		for _, inst := range l.Header.Instructions {
			phi, ok := inst.(*ir.PhiInst)
			if !ok {
				continue
			}
			var start *int64
			var step *int64
			for j, incBlock := range phi.Incoming {
				v := phi.Vals[j]
				if c, ok := v.Def.(*ir.ConstantInst); ok && !l.Blocks[incBlock] {
					lit := c.Lit
					start = &lit
				}
				if bin, ok := v.Def.(*ir.BinaryInst); ok && l.Blocks[incBlock] && bin.Op == "add" {
					if c, ok := bin.Right.Def.(*ir.ConstantInst); ok {
						lit := c.Lit
						step = &lit
					}
				}
			}
			if start != nil && step != nil {
				s.affine[phi.Result()] = AffineRecurrence{Start: *start, Step: *step}
			}
		}
	}
	return s
}

// Recurrence returns the affine recurrence for v and true, or false when v
// isn't recognized as a simple induction variable.
func (s *ScevInfo) Recurrence(v *ir.Value) (AffineRecurrence, bool) {
	r, ok := s.affine[v]
	return r, ok
}
