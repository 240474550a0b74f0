package vm

// globalSlot is one entry of the global symbol table.
type globalSlot struct {
	name  string
	value Value
}

// globalTable keeps slots in creation order. Slots are never removed, so
// a slot index stays valid for the life of the VM.
type globalTable struct {
	slots []globalSlot
	index map[string]int
}

func newGlobalTable() *globalTable {
	return &globalTable{index: make(map[string]int)}
}

// findOrCreate returns the slot for name, creating an empty one if needed.
func (g *globalTable) findOrCreate(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	g.slots = append(g.slots, globalSlot{name: name})
	g.index[name] = len(g.slots) - 1
	return len(g.slots) - 1
}

// get reads without creating a slot.
func (g *globalTable) get(name string) Value {
	if i, ok := g.index[name]; ok {
		return g.slots[i].value
	}
	return nil
}

func (g *globalTable) set(name string, v Value) {
	g.slots[g.findOrCreate(name)].value = v
}

// next returns the first slot at or after from holding a non-nil value,
// or -1.
func (g *globalTable) next(from int) int {
	for i := from; i < len(g.slots); i++ {
		if g.slots[i].value != nil {
			return i
		}
	}
	return -1
}

func (g *globalTable) size() int {
	return len(g.slots)
}

// getGlobal reads a global through the getglobal tag method of its value's tag.
func (vm *VM) getGlobal(name string) Value {
	v := vm.globals.get(name)
	if tm := vm.tagMethod(vm.TagOf(v), EventGetGlobal); tm != nil {
		return first(vm.call(tm, []Value{name, v}))
	}
	return v
}

// setGlobal writes a global through the setglobal tag method of the old
// value's tag.
func (vm *VM) setGlobal(name string, v Value) {
	old := vm.globals.get(name)
	if tm := vm.tagMethod(vm.TagOf(old), EventSetGlobal); tm != nil {
		vm.call(tm, []Value{name, old, v})
		return
	}
	vm.globals.set(name, v)
}

// nextVar returns the global following name in slot order, or the first
// one when name is empty and start is set. Resolving name creates its slot.
func (vm *VM) nextVar(name string, start bool) (string, Value, bool) {
	from := 0
	if !start {
		from = vm.globals.findOrCreate(name) + 1
	}
	i := vm.globals.next(from)
	if i < 0 {
		return "", nil, false
	}
	slot := vm.globals.slots[i]
	return slot.name, slot.value, true
}

func first(vals []Value) Value {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}
