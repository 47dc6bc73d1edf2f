package gomp

import (
	"sort"
	"sync"

	"github.com/pattyshack/towhee/ir"
)

// MutexTable interns the process-wide mutexes backing named critical
// sections.  Two critical(name) regions anywhere in the compilation session
// share one mutex symbol.  Entries are created lazily and never removed.
type MutexTable struct {
	mutex   sync.Mutex
	entries map[string]*ir.Var
}

func NewMutexTable() *MutexTable {
	return &MutexTable{
		entries: map[string]*ir.Var{},
	}
}

// Get returns the mutex variable for the given critical section name,
// creating it on first use.  Safe for concurrent use; functions of a unit
// may be lowered in parallel.
func (table *MutexTable) Get(name string) *ir.Var {
	table.mutex.Lock()
	defer table.mutex.Unlock()

	entry, ok := table.entries[name]
	if !ok {
		entry = &ir.Var{
			Name:    ".gomp_critical_user_" + name,
			Type:    ir.I32,
			Linkage: ir.LinkageStatic,
		}
		table.entries[name] = entry
	}
	return entry
}

func (table *MutexTable) Len() int {
	table.mutex.Lock()
	defer table.mutex.Unlock()
	return len(table.entries)
}

// Vars returns the interned mutex variables in name order.
func (table *MutexTable) Vars() []*ir.Var {
	table.mutex.Lock()
	defer table.mutex.Unlock()

	vars := make([]*ir.Var, 0, len(table.entries))
	for _, entry := range table.entries {
		vars = append(vars, entry)
	}
	sort.Slice(vars, func(i int, j int) bool {
		return vars[i].Name < vars[j].Name
	})
	return vars
}
