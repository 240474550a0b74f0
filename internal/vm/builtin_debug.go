package vm

import "runtime"

// totalmem returns the bytes of heap in use.
func (vm *VM) builtinTotalMem(args []Value) ([]Value, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return []Value{float64(stats.HeapAlloc)}, nil
}
