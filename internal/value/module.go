package value

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// Parameter is the recorded metadata for one io()/config() declaration in a
// module's signature, in declaration order.
type Parameter struct {
	Name      string
	TypeValue starlark.Value
	Optional  bool
	Default   starlark.Value // nil when no default was given
	IsConfig  bool
	Help      string
	// Resolved is the value the placeholder actually produced for this
	// evaluation (parent-supplied, default, or synthesized). The instance
	// tree builder uses it to materialize port children for net-typed
	// parameters.
	Resolved starlark.Value
}

// Module is the evaluator-side value for one evaluated module file: its
// children (components and instantiated submodules) in execution order, its
// properties, and its io()/config() signature.
type Module struct {
	name       string
	sourcePath string
	children   []starlark.Value
	properties *SmallMap
	signature  []*Parameter
	frozen     bool
}

var _ starlark.Value = (*Module)(nil)

// NewModule constructs an empty module value.
func NewModule(name, sourcePath string) *Module {
	return &Module{name: name, sourcePath: sourcePath, properties: NewSmallMap()}
}

func (m *Module) ModuleName() string          { return m.name }
func (m *Module) SourcePath() string          { return m.sourcePath }
func (m *Module) Children() []starlark.Value  { return m.children }
func (m *Module) Properties() *SmallMap       { return m.properties }
func (m *Module) Signature() []*Parameter     { return m.signature }

// SetName overrides the user-visible module name.
func (m *Module) SetName(name string) { m.name = name }

// AddChild appends a child value in execution order.
func (m *Module) AddChild(child starlark.Value) {
	m.children = append(m.children, child)
}

// SetProperty attaches or replaces a property.
func (m *Module) SetProperty(name string, v starlark.Value) {
	m.properties.Set(name, v)
}

// AddParameter records a signature parameter. The first declaration of a
// name wins; repeated io()/config() calls for the same name do not extend
// the signature.
func (m *Module) AddParameter(p *Parameter) {
	for _, existing := range m.signature {
		if existing.Name == p.Name {
			return
		}
	}
	m.signature = append(m.signature, p)
}

// SetParameterResolved records the value a placeholder resolved to.
func (m *Module) SetParameterResolved(name string, v starlark.Value) {
	for _, p := range m.signature {
		if p.Name == name {
			p.Resolved = v
			return
		}
	}
}

func (m *Module) Type() string          { return "Module" }
func (m *Module) Truth() starlark.Bool  { return starlark.True }
func (m *Module) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Module") }

func (m *Module) Freeze() {
	if m.frozen {
		return
	}
	m.frozen = true
	m.properties.Freeze()
	for _, c := range m.children {
		c.Freeze()
	}
	for _, p := range m.signature {
		p.TypeValue.Freeze()
		if p.Default != nil {
			p.Default.Freeze()
		}
		if p.Resolved != nil {
			p.Resolved.Freeze()
		}
	}
}

func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Module(%q", m.name)
	if m.properties.Len() > 0 {
		keys := append([]string(nil), m.properties.Keys()...)
		sort.Strings(keys)
		for _, k := range keys {
			v, _ := m.properties.Get(k)
			fmt.Fprintf(&sb, ", %s = %s", k, v.String())
		}
	}
	sb.WriteString(")")
	return sb.String()
}

func copyModule(m *Module) *Module {
	out := NewModule(m.name, m.sourcePath)
	for _, c := range m.children {
		out.children = append(out.children, Copy(c))
	}
	_ = m.properties.Each(func(k string, v starlark.Value) error {
		out.properties.Set(k, Copy(v))
		return nil
	})
	for _, p := range m.signature {
		cp := &Parameter{
			Name:      p.Name,
			TypeValue: Copy(p.TypeValue),
			Optional:  p.Optional,
			IsConfig:  p.IsConfig,
			Help:      p.Help,
		}
		if p.Default != nil {
			cp.Default = Copy(p.Default)
		}
		if p.Resolved != nil {
			cp.Resolved = Copy(p.Resolved)
		}
		out.signature = append(out.signature, cp)
	}
	return out
}
