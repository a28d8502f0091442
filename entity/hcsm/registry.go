package hcsm

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"gopkg.in/yaml.v2"
)

// Registry maps template names to entity constructors.
type Registry struct {
	constructors map[string]entity.Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]entity.Constructor)}
}

// Register adds a template. Registering the same name twice is a programming error and panics.
func (r *Registry) Register(template string, constructor entity.Constructor) {
	if _, ok := r.constructors[template]; ok {
		log.Panicf("template %s registered twice", template)
	}
	r.constructors[template] = constructor
}

// Templates returns the registered template names in lexical order.
func (r *Registry) Templates() []string {
	names := lo.Keys(r.constructors)
	sort.Strings(names)
	return names
}

// CreateByTemplate builds an entity from its template and init block.
// Returns ErrUnknownTemplate for a missing template, ErrConstruction wrapping
// the constructor's error or panic otherwise.
func (r *Registry) CreateByTemplate(ctx entity.ITaskContext, template string, init entity.InitBlock) (e entity.IEntity, err error) {
	constructor, ok := r.constructors[template]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	defer func() {
		if p := recover(); p != nil {
			e = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrConstruction, template, p)
		}
	}()
	e, err = constructor(ctx, init)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConstruction, template, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s: constructor returned nil", ErrConstruction, template)
	}
	return e, nil
}

// DecodeInit decodes an untyped init block into a parameter struct.
// Unknown keys are rejected.
func DecodeInit[T any](init entity.InitBlock, out *T) error {
	if len(init) == 0 {
		return nil
	}
	data, err := yaml.Marshal(init)
	if err != nil {
		return fmt.Errorf("marshal init block: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return fmt.Errorf("decode init block: %w", err)
	}
	return nil
}
