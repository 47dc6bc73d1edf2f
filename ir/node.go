package ir

import (
	"github.com/pattyshack/gt/parseutil"
)

type Node interface {
	parseutil.Locatable
	Walk(Visitor)
}

type Visitor interface {
	Enter(Node)
	Exit(Node)
}

type Validator interface {
	Validate(*parseutil.Emitter)
}

// NewPos returns a synthesized source range.  Compiler-generated statements
// reuse the position of the construct that produced them; nodes built
// programmatically (tests, the demo driver) use this instead.
func NewPos(fileName string, line int) parseutil.StartEndPos {
	loc := parseutil.Location{
		FileName: fileName,
		Line:     line,
	}
	return parseutil.NewStartEndPos(loc, loc)
}
