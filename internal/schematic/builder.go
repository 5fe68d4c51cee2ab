package schematic

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Schematic is the complete flat design: every instance keyed by its
// canonical reference string, every net keyed by its unique name, and the
// root module reference.
type Schematic struct {
	Instances map[string]*Instance `json:"instances"`
	Nets      map[string]*Net      `json:"nets"`
	RootRef   *InstanceRef         `json:"root_ref"`
	// Symbols maps symbol paths to their raw s-expression content for
	// downstream emitters.
	Symbols map[string]string `json:"symbols"`
}

// New returns an empty schematic.
func New() *Schematic {
	return &Schematic{
		Instances: map[string]*Instance{},
		Nets:      map[string]*Net{},
		Symbols:   map[string]string{},
	}
}

// AddInstance inserts (or replaces) an instance.
func (s *Schematic) AddInstance(ref InstanceRef, inst *Instance) *Schematic {
	s.Instances[ref.String()] = inst
	return s
}

// Instance looks up an instance by reference.
func (s *Schematic) Instance(ref InstanceRef) (*Instance, bool) {
	inst, ok := s.Instances[ref.String()]
	return inst, ok
}

// AddNet inserts (or replaces) a net keyed by its name.
func (s *Schematic) AddNet(net *Net) *Schematic {
	s.Nets[net.Name] = net
	return s
}

// SetRoot records the root module reference.
func (s *Schematic) SetRoot(ref InstanceRef) *Schematic {
	s.RootRef = &ref
	return s
}

// Root returns the root instance, if the root reference is set and present.
func (s *Schematic) Root() (*Instance, bool) {
	if s.RootRef == nil {
		return nil, false
	}
	inst, ok := s.Instances[s.RootRef.String()]
	return inst, ok
}

// SortedNetNames returns net names in lexical order.
func (s *Schematic) SortedNetNames() []string {
	names := make([]string, 0, len(s.Nets))
	for name := range s.Nets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToJSON serializes the schematic deterministically (map keys sorted,
// child maps in declaration order).
func (s *Schematic) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON loads a schematic previously produced by ToJSON.
func FromJSON(data []byte) (*Schematic, error) {
	out := New()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignReferenceDesignators (re)assigns designators to every component:
// components are ordered by their dotted instance path, then numbered per
// prefix starting at 1. The operation is idempotent and returns the
// assignment keyed by canonical reference string.
func (s *Schematic) AssignReferenceDesignators() map[string]string {
	type entry struct {
		key  string
		path string
		inst *Instance
	}
	var components []entry
	for key, inst := range s.Instances {
		if inst.Kind != KindComponent {
			continue
		}
		ref, err := ParseInstanceRef(key)
		if err != nil {
			continue
		}
		components = append(components, entry{
			key:  key,
			path: strings.Join(ref.InstancePath, "."),
			inst: inst,
		})
	}
	sort.Slice(components, func(i, j int) bool { return components[i].path < components[j].path })

	counters := map[string]int{}
	assigned := map[string]string{}
	for _, e := range components {
		prefix := e.inst.Prefix()
		counters[prefix]++
		refdes := prefix + strconv.Itoa(counters[prefix])
		e.inst.SetReferenceDesignator(refdes)
		assigned[e.key] = refdes
	}
	return assigned
}

// Builder is a fluent constructor for schematics, used mainly by tests.
type Builder struct {
	schematic *Schematic
}

// NewBuilder returns a builder over an empty schematic.
func NewBuilder() *Builder {
	return &Builder{schematic: New()}
}

// AddInstance inserts an instance.
func (b *Builder) AddInstance(ref InstanceRef, inst *Instance) *Builder {
	b.schematic.AddInstance(ref, inst)
	return b
}

// AddNet inserts a net.
func (b *Builder) AddNet(net *Net) *Builder {
	b.schematic.AddNet(net)
	return b
}

// SetRoot records the root reference.
func (b *Builder) SetRoot(ref InstanceRef) *Builder {
	b.schematic.SetRoot(ref)
	return b
}

// Build returns the schematic.
func (b *Builder) Build() *Schematic { return b.schematic }
