// Package value defines the closed universe of values the configuration
// language exposes to user code: nets, interfaces, symbols, components,
// modules, and the small enum/record type system io()/config() accept.
// Nothing outside this universe may leak into user code.
package value

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.starlark.net/starlark"
)

var errNonStringKey = errors.New("keys must be strings")

// NetID is the opaque identity of an electrical net. Two ports registered
// under the same NetID belong to the same net, regardless of how many times
// the net value was copied between modules.
type NetID int64

var netIDCounter atomic.Int64

// NextNetID allocates a process-wide unique net id.
func NextNetID() NetID {
	return NetID(netIDCounter.Add(1))
}

// Net is an electrical net value. The id is assigned at construction and
// survives deep copies; the name may be empty until name resolution.
type Net struct {
	id         NetID
	name       string
	properties *SmallMap
	symbol     starlark.Value
	frozen     bool
}

var (
	_ starlark.Value    = (*Net)(nil)
	_ starlark.HasAttrs = (*Net)(nil)
)

// NewNet constructs a net with a fresh id.
func NewNet(name string, properties *SmallMap, symbol starlark.Value) *Net {
	return NewNetWithID(NextNetID(), name, properties, symbol)
}

// NewNetWithID constructs a net reusing an existing id. Used by deep copy,
// where net identity must be preserved.
func NewNetWithID(id NetID, name string, properties *SmallMap, symbol starlark.Value) *Net {
	if properties == nil {
		properties = NewSmallMap()
	}
	if symbol == nil {
		symbol = starlark.None
	}
	return &Net{id: id, name: name, properties: properties, symbol: symbol}
}

func (n *Net) ID() NetID              { return n.id }
func (n *Net) NetName() string        { return n.name }
func (n *Net) Properties() *SmallMap  { return n.properties }
func (n *Net) Symbol() starlark.Value { return n.symbol }

func (n *Net) Type() string          { return "Net" }
func (n *Net) Truth() starlark.Bool  { return starlark.True }
func (n *Net) Hash() (uint32, error) { return uint32(n.id), nil }

func (n *Net) Freeze() {
	if n.frozen {
		return
	}
	n.frozen = true
	n.properties.Freeze()
	n.symbol.Freeze()
}

func (n *Net) String() string {
	var sb strings.Builder
	sb.WriteString("Net(")
	sb.WriteString(fmt.Sprintf("%q", n.name))
	if n.properties.Len() > 0 {
		keys := append([]string(nil), n.properties.Keys()...)
		sort.Strings(keys)
		for _, k := range keys {
			v, _ := n.properties.Get(k)
			sb.WriteString(fmt.Sprintf(", %s = %s", k, v.String()))
		}
	}
	sb.WriteString(")")
	return sb.String()
}

func (n *Net) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(n.name), nil
	case "symbol":
		return n.symbol, nil
	}
	return nil, nil
}

func (n *Net) AttrNames() []string { return []string{"name", "symbol"} }

// copyNet duplicates the net, keeping the id, deep-copying properties and
// the symbol.
func copyNet(n *Net) *Net {
	props := NewSmallMap()
	_ = n.properties.Each(func(k string, v starlark.Value) error {
		props.Set(k, Copy(v))
		return nil
	})
	return NewNetWithID(n.id, n.name, props, Copy(n.symbol))
}

// NetType is the `Net` global: a callable type value that constructs nets.
type NetType struct{}

var (
	_ starlark.Value    = NetType{}
	_ starlark.Callable = NetType{}
)

func (NetType) Type() string          { return "NetType" }
func (NetType) String() string        { return "<type Net>" }
func (NetType) Freeze()               {}
func (NetType) Truth() starlark.Bool  { return starlark.True }
func (NetType) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: NetType") }
func (NetType) Name() string          { return "Net" }

func (NetType) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var properties *starlark.Dict
	var symbol starlark.Value
	if err := starlark.UnpackArgs("Net", args, kwargs,
		"name?", &name,
		"properties?", &properties,
		"symbol?", &symbol,
	); err != nil {
		return nil, err
	}
	props := NewSmallMap()
	if properties != nil {
		var err error
		props, err = FromDict(properties)
		if err != nil {
			return nil, fmt.Errorf("Net: property %v", err)
		}
	}
	if symbol != nil {
		if _, ok := symbol.(*Symbol); !ok && symbol != starlark.None {
			return nil, fmt.Errorf("Net: `symbol` must be a Symbol, got %s", symbol.Type())
		}
	}
	return NewNet(name, props, symbol), nil
}
