package value

import (
	"go.starlark.net/starlark"
)

// Copy deep-copies a value so that a child module's results can be attached
// to the parent without sharing mutable state. Immutable primitives pass
// through; nets keep their NetID (net identity must survive copying);
// containers and domain values copy structurally.
func Copy(v starlark.Value) starlark.Value {
	switch t := v.(type) {
	case nil:
		return starlark.None
	case starlark.NoneType, starlark.Bool, starlark.Int, starlark.Float, starlark.String:
		return v
	case *Net:
		return copyNet(t)
	case *Symbol:
		return copySymbol(t)
	case *InterfaceValue:
		return copyInterfaceValue(t)
	case *InterfaceFactory:
		// Factories are immutable once declared; share them.
		return t
	case *Component:
		return copyComponent(t)
	case *Module:
		return copyModule(t)
	case *EnumType, *EnumValue, *RecordType, NetType:
		return v
	case *RecordValue:
		return copyRecordValue(t)
	case *starlark.Dict:
		out := starlark.NewDict(t.Len())
		for _, item := range t.Items() {
			_ = out.SetKey(Copy(item[0]), Copy(item[1]))
		}
		return out
	case *starlark.List:
		elems := make([]starlark.Value, 0, t.Len())
		it := t.Iterate()
		defer it.Done()
		var elem starlark.Value
		for it.Next(&elem) {
			elems = append(elems, Copy(elem))
		}
		return starlark.NewList(elems)
	case starlark.Tuple:
		elems := make(starlark.Tuple, len(t))
		for i, e := range t {
			elems[i] = Copy(e)
		}
		return elems
	default:
		// Remaining engine values (functions, builtins, ...) are immutable
		// or shared by design.
		return v
	}
}
