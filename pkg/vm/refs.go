package vm

import "sync"

// Ref is an opaque reference handed across the thread surface. 0 is null.
// Local references are only meaningful on the thread that created them;
// global references carry globalBit and are valid on every thread.
type Ref uint32

const globalBit Ref = 1 << 31

// IsGlobal reports whether r names a global reference.
func (r Ref) IsGlobal() bool { return r&globalBit != 0 }

// globalTable holds the VM-wide global references. IDs are never reused, so
// a stale Ref cannot alias a newer object.
type globalTable struct {
	mu    sync.RWMutex
	next  Ref
	limit int
	refs  map[Ref]*Object
}

func newGlobalTable(limit int) *globalTable {
	return &globalTable{limit: limit, refs: make(map[Ref]*Object)}
}

// add returns 0 when the table is full.
func (g *globalTable) add(obj *Object) Ref {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.limit > 0 && len(g.refs) >= g.limit {
		return 0
	}
	g.next++
	r := g.next | globalBit
	g.refs[r] = obj
	return r
}

func (g *globalTable) get(r Ref) (*Object, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.refs[r]
	return obj, ok
}

func (g *globalTable) remove(r Ref) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.refs[r]; !ok {
		return false
	}
	delete(g.refs, r)
	return true
}

func (g *globalTable) len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refs)
}

func (g *globalTable) clear() {
	g.mu.Lock()
	clear(g.refs)
	g.mu.Unlock()
}

// localTable is a stack of local reference frames owned by one thread.
type localTable struct {
	next   Ref
	frames []map[Ref]*Object
}

func newLocalTable() *localTable {
	return &localTable{frames: []map[Ref]*Object{make(map[Ref]*Object)}}
}

func (l *localTable) add(obj *Object) Ref {
	if obj == nil {
		return 0
	}
	l.next++
	if l.next&globalBit != 0 {
		l.next = 1
	}
	top := l.frames[len(l.frames)-1]
	top[l.next] = obj
	return l.next
}

func (l *localTable) get(r Ref) (*Object, bool) {
	for i := len(l.frames) - 1; i >= 0; i-- {
		if obj, ok := l.frames[i][r]; ok {
			return obj, true
		}
	}
	return nil, false
}

func (l *localTable) remove(r Ref) bool {
	for i := len(l.frames) - 1; i >= 0; i-- {
		if _, ok := l.frames[i][r]; ok {
			delete(l.frames[i], r)
			return true
		}
	}
	return false
}

func (l *localTable) push() {
	l.frames = append(l.frames, make(map[Ref]*Object))
}

// pop discards the top frame. The bottom frame is never popped.
func (l *localTable) pop() bool {
	if len(l.frames) == 1 {
		return false
	}
	l.frames = l.frames[:len(l.frames)-1]
	return true
}

func (l *localTable) len() int {
	n := 0
	for _, f := range l.frames {
		n += len(f)
	}
	return n
}
