package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/eduflow/eduflow/types"
)

// StepBlueprint describes one step of a workflow template. The required
// capability is an explicit field set at template-authoring time; dispatch
// never pattern-matches on the action text.
type StepBlueprint struct {
	ID                 string         `json:"id" yaml:"id"`
	Action             string         `json:"action" yaml:"action"`
	RequiredCapability Capability     `json:"required_capability" yaml:"required_capability"`
	DependsOn          []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Timeout            time.Duration  `json:"timeout" yaml:"timeout"`
	Defaults           map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// UnmarshalYAML decodes a blueprint from YAML, accepting human-readable
// timeouts like "30s".
func (b *StepBlueprint) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID                 string         `yaml:"id"`
		Action             string         `yaml:"action"`
		RequiredCapability string         `yaml:"required_capability"`
		DependsOn          []string       `yaml:"depends_on"`
		Timeout            string         `yaml:"timeout"`
		Defaults           map[string]any `yaml:"defaults"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	b.ID = raw.ID
	b.Action = raw.Action
	b.RequiredCapability = Capability(raw.RequiredCapability)
	b.DependsOn = raw.DependsOn
	b.Defaults = raw.Defaults
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("step %s: invalid timeout: %w", raw.ID, err)
		}
		b.Timeout = d
	}
	return nil
}

// Template is an immutable workflow blueprint: a named, ordered list of
// step blueprints with declared dependencies.
type Template struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Steps       []StepBlueprint `json:"steps" yaml:"steps"`
}

// Parameters supplies per-step input overrides at instantiation time,
// keyed by step id and merged over each blueprint's defaults.
type Parameters map[string]map[string]any

// Registry is the workflow template catalog. Templates are immutable once
// registered; registration does not validate capabilities against the
// handler registry (handler resolution is a dispatch-time concern).
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register stores an immutable blueprint. It validates structural
// integrity: a non-empty name, at least one step, unique step ids, and
// dependencies referencing sibling step ids only.
func (r *Registry) Register(tpl Template) error {
	if tpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if len(tpl.Steps) == 0 {
		return fmt.Errorf("template %s has no steps", tpl.Name)
	}

	ids := make(map[string]bool, len(tpl.Steps))
	for _, s := range tpl.Steps {
		if s.ID == "" {
			return fmt.Errorf("template %s has a step with an empty id", tpl.Name)
		}
		if ids[s.ID] {
			return fmt.Errorf("template %s has duplicate step id %s", tpl.Name, s.ID)
		}
		ids[s.ID] = true
	}
	for _, s := range tpl.Steps {
		for _, dep := range s.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("template %s step %s depends on unknown step %s",
					tpl.Name, s.ID, dep)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Deep-copy steps so later mutation of the caller's slice cannot reach
	// the registered blueprint.
	cp := tpl
	cp.Steps = make([]StepBlueprint, len(tpl.Steps))
	for i, s := range tpl.Steps {
		cp.Steps[i] = s
		cp.Steps[i].DependsOn = append([]string(nil), s.DependsOn...)
		cp.Steps[i].Defaults = cloneMap(s.Defaults)
	}
	r.templates[tpl.Name] = cp
	return nil
}

// Get returns a registered template by name.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[name]
	return tpl, ok
}

// Names returns the registered template names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	return names
}

// Instantiate returns a fresh Workflow populated from the named blueprint,
// with each step's input merged from blueprint defaults and the caller's
// per-step parameters. Unknown names fail with TEMPLATE_NOT_FOUND.
func (r *Registry) Instantiate(name string, params Parameters, priority types.Priority) (*Workflow, error) {
	r.mu.RLock()
	tpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewErrorf(types.ErrTemplateNotFound, "template %s not found", name)
	}

	if priority == "" {
		priority = types.PriorityMedium
	}

	wf := &Workflow{
		ID:        uuid.NewString(),
		Name:      tpl.Name,
		Status:    StatusCreated,
		Priority:  priority,
		Steps:     make([]*Step, 0, len(tpl.Steps)),
		CreatedAt: time.Now(),
	}

	for _, bp := range tpl.Steps {
		input := cloneMap(bp.Defaults)
		if overrides, ok := params[bp.ID]; ok {
			if input == nil {
				input = make(map[string]any, len(overrides))
			}
			for k, v := range overrides {
				input[k] = v
			}
		}
		wf.Steps = append(wf.Steps, &Step{
			ID:                 bp.ID,
			Action:             bp.Action,
			RequiredCapability: bp.RequiredCapability,
			Input:              input,
			Status:             StepPending,
			DependsOn:          append([]string(nil), bp.DependsOn...),
			Timeout:            bp.Timeout,
		})
	}

	wf.graph = BuildGraph(wf.Steps)
	wf.history = NewExecutionHistory(wf.ID, wf.Name)
	return wf, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
