package dynform

import (
	"strconv"

	"github.com/reoring/dynform/condition"
)

// Build turns configs into a form tree rooted at an unnamed group. Configs
// are expected to have passed ValidateConfig; a node that matches no shape
// (children and formArray together, an empty template, a missing or
// duplicated identifier) yields a *ConstructionError.
func Build(configs []FieldConfig, opts ...Option) (*Node, error) {
	b := &builder{s: newSettings(opts)}
	return b.root(configs)
}

type builder struct {
	s *settings
	// user marks patches that come from user edits; they leave readonly
	// controls alone.
	user bool
}

func (b *builder) root(configs []FieldConfig) (*Node, error) {
	root := &Node{kind: KindGroup, cfg: FieldConfig{Children: configs}, byName: map[string]*Node{}}
	if err := b.children(root, configs); err != nil {
		return nil, err
	}
	return root, nil
}

func (b *builder) children(parent *Node, configs []FieldConfig) error {
	for _, c := range configs {
		if c.FormControlName == "" {
			return &ConstructionError{Path: joinPath(parent.Path(), "?"), Reason: "missing formControlName"}
		}
		if _, dup := parent.byName[c.FormControlName]; dup {
			return &ConstructionError{Path: joinPath(parent.Path(), c.FormControlName), Reason: "duplicate formControlName"}
		}
		n, err := b.node(c, parent, c.FormControlName)
		if err != nil {
			return err
		}
		parent.children = append(parent.children, n)
		parent.byName[n.name] = n
	}
	return nil
}

func (b *builder) node(c FieldConfig, parent *Node, name string) (*Node, error) {
	n := &Node{
		name:     name,
		kind:     c.Kind(),
		cfg:      c,
		parent:   parent,
		readonly: c.Readonly,
		ctype:    resolveType(c.Type, b.s.types),
	}
	if c.Children != nil && c.FormArray != nil {
		return nil, &ConstructionError{Path: n.Path(), Reason: "both children and formArray are set"}
	}
	b.attach(n)

	switch n.kind {
	case KindGroup:
		n.byName = make(map[string]*Node, len(c.Children))
		if err := b.children(n, c.Children); err != nil {
			return nil, err
		}
		if c.Value != nil {
			if err := n.patch(c.Value, b); err != nil {
				return nil, err
			}
		}
	case KindArray:
		if len(c.FormArray.Template) == 0 {
			return nil, &ConstructionError{Path: n.Path(), Reason: "formArray template is empty"}
		}
		// an empty initial list falls back to the configured length
		if list, ok := asList(c.Value); ok && len(list) > 0 {
			for _, v := range list {
				if _, err := n.appendItem(v, b); err != nil {
					return nil, err
				}
			}
		} else {
			for i := 0; i < c.FormArray.Length; i++ {
				if _, err := n.appendItem(nil, b); err != nil {
					return nil, err
				}
			}
		}
	default:
		n.value = n.ctype.normalize(c.Value)
		if c.Options != nil {
			n.static = c.Options.Data
			n.options = mergeOptions(n.static, nil, c.Options.SrcAppendPosition)
		}
	}
	return n, nil
}

// item builds repetition i of an array's template as a group node.
func (b *builder) item(arr *Node, i int) (*Node, error) {
	item := &Node{
		name:   strconv.Itoa(i),
		kind:   KindGroup,
		cfg:    FieldConfig{FormControlName: strconv.Itoa(i), Children: arr.cfg.FormArray.Template},
		parent: arr,
		ctype:  resolveType("", b.s.types),
		byName: map[string]*Node{},
	}
	if err := b.children(item, arr.cfg.FormArray.Template); err != nil {
		return nil, err
	}
	return item, nil
}

// attach compiles validators and conditions onto n. Unknown validators
// become no-ops; ValidateConfig reports them.
func (b *builder) attach(n *Node) {
	if n.kind != KindGroup {
		n.specs = n.cfg.Validators
		for _, spec := range n.cfg.Validators {
			fn, _ := compileValidator(spec, b.s.validators)
			n.validators = append(n.validators, fn)
		}
	}
	for _, name := range n.cfg.Conditions.Names() {
		if name == "" {
			continue
		}
		if p := condition.Compile(n.cfg.Conditions[name]); p != nil {
			if n.conds == nil {
				n.conds = map[string]*condition.Predicate{}
			}
			n.conds[name] = p
		}
	}
}
