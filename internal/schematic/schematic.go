// Package schematic defines the flat output of an elaboration: an instance
// tree keyed by hierarchical references plus the set of named electrical
// nets. The structures are read-only for downstream tooling (netlist
// emitters, placers, viewers) and serialize to JSON.
package schematic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ModuleRef identifies a module *type*: the file it was declared in plus the
// module name inside that file. Instances of the same definition share a
// ModuleRef.
type ModuleRef struct {
	SourcePath string `json:"source_path"`
	ModuleName string `json:"module_name"`
}

// NewModuleRef builds a ModuleRef.
func NewModuleRef(sourcePath, moduleName string) ModuleRef {
	return ModuleRef{SourcePath: sourcePath, ModuleName: moduleName}
}

// InstanceRef is the path-addressed identity of an instance: the root
// module reference plus the hierarchical path of instance names. It
// stringifies as "<source>:<module>{.<segment>}*" and that canonical string
// is its identity for maps and JSON.
type InstanceRef struct {
	Module       ModuleRef
	InstancePath []string
}

// NewInstanceRef builds an InstanceRef.
func NewInstanceRef(module ModuleRef, path []string) InstanceRef {
	return InstanceRef{Module: module, InstancePath: path}
}

// Append returns a new reference one level deeper.
func (r InstanceRef) Append(segment string) InstanceRef {
	path := make([]string, 0, len(r.InstancePath)+1)
	path = append(path, r.InstancePath...)
	path = append(path, segment)
	return InstanceRef{Module: r.Module, InstancePath: path}
}

// Parent returns the reference with the last path segment dropped, and
// false when the reference is already the root.
func (r InstanceRef) Parent() (InstanceRef, bool) {
	if len(r.InstancePath) == 0 {
		return r, false
	}
	return InstanceRef{Module: r.Module, InstancePath: r.InstancePath[:len(r.InstancePath)-1]}, true
}

func (r InstanceRef) String() string {
	var sb strings.Builder
	sb.WriteString(r.Module.SourcePath)
	sb.WriteString(":")
	sb.WriteString(r.Module.ModuleName)
	for _, seg := range r.InstancePath {
		sb.WriteString(".")
		sb.WriteString(seg)
	}
	return sb.String()
}

// MarshalJSON serializes the reference as its canonical string.
func (r InstanceRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses the canonical string form.
func (r *InstanceRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInstanceRef(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseInstanceRef parses the "<source>:<module>{.<segment>}*" form.
func ParseInstanceRef(s string) (InstanceRef, error) {
	colon := strings.LastIndex(s, ":")
	if colon < 0 {
		return InstanceRef{}, fmt.Errorf("invalid instance ref %q", s)
	}
	source := s[:colon]
	rest := strings.Split(s[colon+1:], ".")
	ref := InstanceRef{Module: ModuleRef{SourcePath: source, ModuleName: rest[0]}}
	if len(rest) > 1 {
		ref.InstancePath = rest[1:]
	}
	return ref, nil
}

// InstanceKind discriminates what an Instance represents.
type InstanceKind int

const (
	KindModule InstanceKind = iota
	KindComponent
	KindInterface
	KindPort
	KindPin
)

func (k InstanceKind) String() string {
	switch k {
	case KindModule:
		return "Module"
	case KindComponent:
		return "Component"
	case KindInterface:
		return "Interface"
	case KindPort:
		return "Port"
	case KindPin:
		return "Pin"
	}
	return "Unknown"
}

// MarshalJSON serializes the kind as its name.
func (k InstanceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a kind name.
func (k *InstanceKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "Module":
		*k = KindModule
	case "Component":
		*k = KindComponent
	case "Interface":
		*k = KindInterface
	case "Port":
		*k = KindPort
	case "Pin":
		*k = KindPin
	default:
		return fmt.Errorf("unknown instance kind %q", name)
	}
	return nil
}

// NetKind is the semantic classification of a net, derived from its "type"
// property.
type NetKind int

const (
	NetNormal NetKind = iota
	NetGround
	NetPower
)

func (k NetKind) String() string {
	switch k {
	case NetGround:
		return "Ground"
	case NetPower:
		return "Power"
	}
	return "Normal"
}

// MarshalJSON serializes the kind as its name.
func (k NetKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a net kind name.
func (k *NetKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "Normal":
		*k = NetNormal
	case "Ground":
		*k = NetGround
	case "Power":
		*k = NetPower
	default:
		return fmt.Errorf("unknown net kind %q", name)
	}
	return nil
}

// Net is one electrical net: a globally unique name, the ports that belong
// to it in registration order, and its declared properties.
type Net struct {
	Kind       NetKind                   `json:"kind"`
	Name       string                    `json:"name"`
	Ports      []InstanceRef             `json:"ports"`
	Properties map[string]AttributeValue `json:"properties"`
}

// NewNet constructs an empty net.
func NewNet(kind NetKind, name string) *Net {
	return &Net{Kind: kind, Name: name, Properties: map[string]AttributeValue{}}
}

// AddPort appends a port reference.
func (n *Net) AddPort(port InstanceRef) *Net {
	n.Ports = append(n.Ports, port)
	return n
}

// AddProperty sets a property.
func (n *Net) AddProperty(key string, v AttributeValue) *Net {
	n.Properties[key] = v
	return n
}
