package schematic

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Children is an insertion-ordered name→InstanceRef map. Child order is the
// order in which children were declared during evaluation and is preserved
// through JSON.
type Children struct {
	names []string
	refs  map[string]InstanceRef
}

// NewChildren returns an empty child map.
func NewChildren() *Children {
	return &Children{refs: map[string]InstanceRef{}}
}

// Set inserts or replaces a child.
func (c *Children) Set(name string, ref InstanceRef) {
	if _, ok := c.refs[name]; !ok {
		c.names = append(c.names, name)
	}
	c.refs[name] = ref
}

// Get looks up a child by name.
func (c *Children) Get(name string) (InstanceRef, bool) {
	ref, ok := c.refs[name]
	return ref, ok
}

// Len returns the number of children.
func (c *Children) Len() int { return len(c.names) }

// Names returns the child names in insertion order.
func (c *Children) Names() []string { return c.names }

// Each visits children in insertion order.
func (c *Children) Each(fn func(name string, ref InstanceRef)) {
	for _, name := range c.names {
		fn(name, c.refs[name])
	}
}

// MarshalJSON writes the children as a JSON object in insertion order.
func (c *Children) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		ref, err := json.Marshal(c.refs[name])
		if err != nil {
			return nil, err
		}
		buf.Write(ref)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (c *Children) UnmarshalJSON(data []byte) error {
	*c = *NewChildren()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("children must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("child key must be a string")
		}
		var refStr string
		if err := dec.Decode(&refStr); err != nil {
			return err
		}
		ref, err := ParseInstanceRef(refStr)
		if err != nil {
			return err
		}
		c.Set(name, ref)
	}
	_, err = dec.Token() // closing brace
	return err
}

// Instance is one node of the flat instance tree.
type Instance struct {
	TypeRef             ModuleRef                 `json:"type_ref"`
	Kind                InstanceKind              `json:"kind"`
	Attributes          map[string]AttributeValue `json:"attributes"`
	Children            *Children                 `json:"children"`
	ReferenceDesignator *string                   `json:"reference_designator"`
}

// NewInstance constructs an empty instance of the given kind.
func NewInstance(typeRef ModuleRef, kind InstanceKind) *Instance {
	return &Instance{
		TypeRef:    typeRef,
		Kind:       kind,
		Attributes: map[string]AttributeValue{},
		Children:   NewChildren(),
	}
}

// ModuleInstance constructs a Module-kind instance.
func ModuleInstance(typeRef ModuleRef) *Instance { return NewInstance(typeRef, KindModule) }

// ComponentInstance constructs a Component-kind instance.
func ComponentInstance(typeRef ModuleRef) *Instance { return NewInstance(typeRef, KindComponent) }

// InterfaceInstance constructs an Interface-kind instance.
func InterfaceInstance(typeRef ModuleRef) *Instance { return NewInstance(typeRef, KindInterface) }

// PortInstance constructs a Port-kind instance.
func PortInstance(typeRef ModuleRef) *Instance { return NewInstance(typeRef, KindPort) }

// PinInstance constructs a Pin-kind instance.
func PinInstance(typeRef ModuleRef) *Instance { return NewInstance(typeRef, KindPin) }

// AddAttribute sets an attribute and returns the instance for chaining.
func (i *Instance) AddAttribute(key string, v AttributeValue) *Instance {
	i.Attributes[key] = v
	return i
}

// AddChild registers a child reference and returns the instance.
func (i *Instance) AddChild(name string, ref InstanceRef) *Instance {
	i.Children.Set(name, ref)
	return i
}

// SetReferenceDesignator assigns the refdes.
func (i *Instance) SetReferenceDesignator(refdes string) *Instance {
	i.ReferenceDesignator = &refdes
	return i
}

// Prefix returns the designator prefix for a component instance: the
// explicit "prefix" attribute, else the first letter of the "type"
// attribute uppercased, else "U".
func (i *Instance) Prefix() string {
	if v, ok := i.Attributes["prefix"]; ok {
		if s, ok := v.AsString(); ok && s != "" {
			return s
		}
	}
	if v, ok := i.Attributes["type"]; ok {
		if s, ok := v.AsString(); ok && s != "" {
			return string(bytes.ToUpper([]byte(s[:1])))
		}
	}
	return "U"
}
