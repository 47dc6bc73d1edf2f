package lower

import (
	"github.com/pattyshack/towhee/ir"
)

// checkNesting enforces the construct nesting restrictions.  "Closely
// nested" means within the same binding region; crossing a parallel
// boundary starts a fresh region, so the walks below stop there (except
// the critical-name check, where nesting deadlocks regardless of
// intervening parallels).
func (s *scanner) checkNesting(construct ir.Construct, outer *context) {
	switch concrete := construct.(type) {
	case *ir.ForConstruct, *ir.SectionsConstruct, *ir.SingleConstruct:
		s.checkWorksharingNesting(construct, outer)
	case *ir.MasterConstruct:
		for cur := outer; cur != nil && !cur.isParallel(); cur = cur.outer {
			if cur.construct == nil {
				continue
			}
			switch cur.kind() {
			case ir.KindFor, ir.KindSections, ir.KindSingle:
				s.Emit(
					construct.Loc(),
					"master region may not be closely nested inside of "+
						"work-sharing region")
				return
			}
		}
	case *ir.OrderedConstruct:
		for cur := outer; cur != nil && !cur.isParallel(); cur = cur.outer {
			if cur.construct == nil {
				continue
			}
			switch cur.kind() {
			case ir.KindCritical:
				s.Emit(
					construct.Loc(),
					"ordered region may not be closely nested inside of "+
						"critical region")
				return
			case ir.KindFor:
				loop := cur.construct.(*ir.ForConstruct)
				if !loop.Clauses.HasOrdered() {
					s.Emit(
						construct.Loc(),
						"ordered region must be closely nested inside a loop "+
							"region with an ordered clause")
				}
				return
			}
		}
		s.Emit(
			construct.Loc(),
			"ordered region must be closely nested inside a loop region "+
				"with an ordered clause")
	case *ir.CriticalConstruct:
		for cur := outer; cur != nil; cur = cur.outer {
			enclosing, ok := cur.construct.(*ir.CriticalConstruct)
			if ok && enclosing.Name == concrete.Name {
				s.Emit(
					construct.Loc(),
					"critical region may not be nested inside a critical "+
						"region with the same name")
				return
			}
		}
	}
}

func (s *scanner) checkWorksharingNesting(
	construct ir.Construct,
	outer *context,
) {
	for cur := outer; cur != nil && !cur.isParallel(); cur = cur.outer {
		if cur.construct == nil {
			continue
		}
		switch cur.kind() {
		case ir.KindFor, ir.KindSections, ir.KindSingle,
			ir.KindCritical, ir.KindOrdered, ir.KindMaster:
			s.Emit(
				construct.Loc(),
				"work-sharing region may not be closely nested inside of "+
					"work-sharing, critical, ordered or master region")
			return
		}
	}
}
