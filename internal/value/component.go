package value

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// Component is a placed electronic component: a footprint, a reference
// designator prefix, a symbol describing its pads, and the nets each signal
// connects to.
type Component struct {
	CompName    string
	MPN         string
	CType       string
	Footprint   string
	Prefix      string
	SourcePath  string
	Connections *SmallMap // signal name → *Net, declaration order
	Properties  *SmallMap
	Sym         starlark.Value // *Symbol or None
	frozen      bool
}

var (
	_ starlark.Value    = (*Component)(nil)
	_ starlark.HasAttrs = (*Component)(nil)
)

func (c *Component) Type() string          { return "Component" }
func (c *Component) Truth() starlark.Bool  { return starlark.True }
func (c *Component) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Component") }

func (c *Component) Freeze() {
	if c.frozen {
		return
	}
	c.frozen = true
	c.Connections.Freeze()
	c.Properties.Freeze()
	c.Sym.Freeze()
}

func (c *Component) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Component(%q", c.CompName)
	keys := append([]string(nil), c.Connections.Keys()...)
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := c.Connections.Get(k)
		fmt.Fprintf(&sb, ", %s = %s", k, v.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (c *Component) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(c.CompName), nil
	case "footprint":
		return starlark.String(c.Footprint), nil
	case "prefix":
		return starlark.String(c.Prefix), nil
	case "symbol":
		return c.Sym, nil
	}
	return nil, nil
}

func (c *Component) AttrNames() []string {
	return []string{"footprint", "name", "prefix", "symbol"}
}

// SymbolValue returns the component's symbol, or nil when it has none.
func (c *Component) SymbolValue() *Symbol {
	if s, ok := c.Sym.(*Symbol); ok {
		return s
	}
	return nil
}

func copyComponent(c *Component) *Component {
	conns := NewSmallMap()
	_ = c.Connections.Each(func(k string, v starlark.Value) error {
		conns.Set(k, Copy(v))
		return nil
	})
	props := NewSmallMap()
	_ = c.Properties.Each(func(k string, v starlark.Value) error {
		props.Set(k, Copy(v))
		return nil
	})
	return &Component{
		CompName:    c.CompName,
		MPN:         c.MPN,
		CType:       c.CType,
		Footprint:   c.Footprint,
		Prefix:      c.Prefix,
		SourcePath:  c.SourcePath,
		Connections: conns,
		Properties:  props,
		Sym:         Copy(c.Sym),
	}
}
