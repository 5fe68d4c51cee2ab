// Package convert walks a frozen module value tree and produces the flat
// schematic: one instance per module, component, parameter port, and
// component signal port, plus net membership gathered by NetID and handed
// to the name resolver.
package convert

import (
	"fmt"
	"path/filepath"

	"go.starlark.net/starlark"

	"github.com/pro-utkarshM/picoplace/internal/nameres"
	"github.com/pro-utkarshM/picoplace/internal/schematic"
	"github.com/pro-utkarshM/picoplace/internal/value"
)

type converter struct {
	sch      *schematic.Schematic
	netPorts map[value.NetID][]schematic.InstanceRef
	netOrder []value.NetID
	netName  map[value.NetID]string
	netProps map[value.NetID]map[string]schematic.AttributeValue
}

// ToSchematic flattens the root module value into a schematic, resolves
// net names, and assigns reference designators.
func ToSchematic(root *value.Module) (*schematic.Schematic, error) {
	c := &converter{
		sch:      schematic.New(),
		netPorts: map[value.NetID][]schematic.InstanceRef{},
		netName:  map[value.NetID]string{},
		netProps: map[value.NetID]map[string]schematic.AttributeValue{},
	}

	rootRef := schematic.NewInstanceRef(
		schematic.NewModuleRef(root.SourcePath(), root.ModuleName()), nil)
	if err := c.addModuleAt(root, rootRef); err != nil {
		return nil, err
	}
	c.sch.SetRoot(rootRef)

	infos := make([]*nameres.NetInfo, 0, len(c.netOrder))
	for _, id := range c.netOrder {
		infos = append(infos, &nameres.NetInfo{
			ID:         id,
			Ports:      c.netPorts[id],
			Explicit:   c.netName[id],
			Properties: c.netProps[id],
		})
	}
	nets, err := nameres.ResolveNets(infos)
	if err != nil {
		return nil, err
	}
	for _, net := range nets {
		c.sch.AddNet(net)
	}

	c.sch.AssignReferenceDesignators()
	return c.sch, nil
}

func (c *converter) addInstanceAt(ref schematic.InstanceRef, v starlark.Value) error {
	switch child := v.(type) {
	case *value.Module:
		return c.addModuleAt(child, ref)
	case *value.Component:
		return c.addComponentAt(child, ref)
	}
	return fmt.Errorf("unexpected value in module: %s", v.Type())
}

func childName(v starlark.Value) (string, error) {
	switch child := v.(type) {
	case *value.Module:
		return child.ModuleName(), nil
	case *value.Component:
		return child.CompName, nil
	}
	return "", fmt.Errorf("unexpected value in module: %s", v.Type())
}

func (c *converter) registerNet(net *value.Net, ref schematic.InstanceRef) {
	id := net.ID()
	if _, seen := c.netPorts[id]; !seen {
		c.netOrder = append(c.netOrder, id)
	}
	c.netPorts[id] = append(c.netPorts[id], ref)
	c.netName[id] = net.NetName()
	if _, ok := c.netProps[id]; !ok {
		props := map[string]schematic.AttributeValue{}
		_ = net.Properties().Each(func(k string, v starlark.Value) error {
			props[k] = toAttributeValue(v)
			return nil
		})
		c.netProps[id] = props
	}
}

func (c *converter) addModuleAt(module *value.Module, ref schematic.InstanceRef) error {
	typeRef := schematic.NewModuleRef(module.SourcePath(), "<root>")
	inst := schematic.ModuleInstance(typeRef)

	err := module.Properties().Each(func(key string, v starlark.Value) error {
		// A module's layout_path is declared relative to its own source
		// file; once the module is placed inside a parent, the path is
		// anchored to the source directory so the flat schematic still
		// points at the right file.
		if key == "layout_path" && len(ref.InstancePath) > 0 {
			if s, ok := starlark.AsString(v); ok {
				dir := filepath.Dir(module.SourcePath())
				if dir != "" && dir != "." {
					inst.AddAttribute(key, schematic.StringAttr(filepath.Join(dir, s)))
					return nil
				}
			}
		}
		inst.AddAttribute(key, toAttributeValue(v))
		return nil
	})
	if err != nil {
		return err
	}

	for _, param := range module.Signature() {
		switch resolved := param.Resolved.(type) {
		case *value.Net:
			paramRef := ref.Append(param.Name)
			c.sch.AddInstance(paramRef, schematic.PortInstance(typeRef))
			c.registerNet(resolved, paramRef)
			inst.AddChild(param.Name, paramRef)
		case *value.InterfaceValue:
			paramRef := ref.Append(param.Name)
			c.sch.AddInstance(paramRef, schematic.InterfaceInstance(typeRef))
			inst.AddChild(param.Name, paramRef)
		}
		// Other parameter types (enums, records, primitives) have no
		// schematic representation.
	}

	for _, child := range module.Children() {
		name, err := childName(child)
		if err != nil {
			return err
		}
		childRef := ref.Append(name)
		if err := c.addInstanceAt(childRef, child); err != nil {
			return err
		}
		inst.AddChild(name, childRef)
	}

	c.sch.AddInstance(ref, inst)
	return nil
}

func (c *converter) addComponentAt(component *value.Component, ref schematic.InstanceRef) error {
	typeRef := schematic.NewModuleRef(component.SourcePath, component.CompName)
	inst := schematic.ComponentInstance(typeRef)

	inst.AddAttribute("footprint", schematic.StringAttr(component.Footprint))
	inst.AddAttribute("prefix", schematic.StringAttr(component.Prefix))
	if component.MPN != "" {
		inst.AddAttribute("mpn", schematic.StringAttr(component.MPN))
	}
	if component.CType != "" {
		inst.AddAttribute("type", schematic.StringAttr(component.CType))
	}

	err := component.Properties.Each(func(key string, v starlark.Value) error {
		inst.AddAttribute(key, toAttributeValue(v))
		return nil
	})
	if err != nil {
		return err
	}

	sym := component.SymbolValue()
	if sym != nil {
		if sym.SymName != "" {
			inst.AddAttribute("symbol_name", schematic.StringAttr(sym.SymName))
		}
		if sym.SourcePath != "" {
			inst.AddAttribute("symbol_path", schematic.StringAttr(sym.SourcePath))
			if sym.RawSexp != "" {
				c.sch.Symbols[sym.SourcePath] = sym.RawSexp
			}
		}
		if sym.RawSexp != "" {
			inst.AddAttribute("__symbol_value", schematic.StringAttr(sym.RawSexp))
		}

		// One port per signal, pads grouped in symbol order.
		for _, signal := range sym.SignalNames() {
			portRef := ref.Append(signal)
			port := schematic.PortInstance(typeRef)

			pads := sym.PadsForSignal(signal)
			padAttrs := make([]schematic.AttributeValue, 0, len(pads))
			for _, pad := range pads {
				padAttrs = append(padAttrs, schematic.StringAttr(pad))
			}
			port.AddAttribute("pads", schematic.ArrayAttr(padAttrs))

			c.sch.AddInstance(portRef, port)
			inst.AddChild(signal, portRef)

			if conn, ok := component.Connections.Get(signal); ok {
				net, ok := conn.(*value.Net)
				if !ok {
					return fmt.Errorf("expected net value for pin %q, found %s", signal, conn.Type())
				}
				c.registerNet(net, portRef)
			}
		}
	}

	c.sch.AddInstance(ref, inst)
	return nil
}

// toAttributeValue lowers a language value into a schematic attribute.
// Unrepresentable values fall back to their display string.
func toAttributeValue(v starlark.Value) schematic.AttributeValue {
	switch t := v.(type) {
	case starlark.String:
		return schematic.StringAttr(string(t))
	case starlark.Int:
		f, _ := starlark.AsFloat(t)
		return schematic.NumberAttr(f)
	case starlark.Float:
		return schematic.NumberAttr(float64(t))
	case starlark.Bool:
		return schematic.BoolAttr(bool(t))
	case *starlark.List:
		var elems []schematic.AttributeValue
		it := t.Iterate()
		defer it.Done()
		var elem starlark.Value
		for it.Next(&elem) {
			elems = append(elems, toAttributeValue(elem))
		}
		return schematic.ArrayAttr(elems)
	case starlark.Tuple:
		var elems []schematic.AttributeValue
		for _, e := range t {
			elems = append(elems, toAttributeValue(e))
		}
		return schematic.ArrayAttr(elems)
	default:
		return schematic.StringAttr(v.String())
	}
}
