package interceptor

import (
	"sync"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
)

// tuplePool recycles the scratch slices the notify loop gathers live request
// tuples into on every tick.
var tuplePool = sync.Pool{
	New: func() any {
		s := make([]tmmbn.Tuple, 0, tmmbn.MaxEntries)
		return &s
	},
}

// getTuples returns an empty tuple slice from the pool.
func getTuples() *[]tmmbn.Tuple {
	return tuplePool.Get().(*[]tmmbn.Tuple)
}

// putTuples truncates s and returns it to the pool.
func putTuples(s *[]tmmbn.Tuple) {
	*s = (*s)[:0]
	tuplePool.Put(s)
}
