package vm

// call(f, args [, mode]) calls f with the elements of args. When args.n is
// a number it is the argument count and nils inside the range are passed;
// otherwise arguments stop at the first nil. Mode "pack" returns a single
// table {r1, ..., rk, n = k} instead of the results themselves.
//
// The call is protected so that the stack is unwound cleanly, and a
// failure is raised again unchanged. The error method has already seen it
// and is not called a second time.
func (vm *VM) builtinCall(args []Value) ([]Value, error) {
	p := newParams("call", args)
	fn, _ := p.get(1)
	if !isFunction(fn) {
		return nil, p.argError(1, "function expected")
	}
	t, err := p.table(2)
	if err != nil {
		return nil, err
	}
	mode, err := p.optStr(3, "")
	if err != nil {
		return nil, err
	}

	n := -1
	if count, ok := ToNumber(vm.getTable(t, "n")); ok {
		n = int(count)
		if n < 0 {
			n = 0
		}
		if n > maxCallArgs {
			return nil, p.argError(2, "too many arguments")
		}
	}

	var callArgs []Value
	for i := 1; n < 0 || i <= n; i++ {
		v := vm.getTable(t, float64(i))
		if n < 0 && v == nil {
			break
		}
		callArgs = append(callArgs, v)
	}

	results, se := vm.pcall(fn, callArgs)
	if se != nil {
		vm.throw(se)
	}
	if mode != "pack" {
		return results, nil
	}

	packed := NewTable()
	for i, r := range results {
		packed.Set(float64(i+1), r)
	}
	packed.Set("n", float64(len(results)))
	return []Value{packed}, nil
}
