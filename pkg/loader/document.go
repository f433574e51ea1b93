package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

type document struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Variables   variablesDocument    `yaml:"variables"`
	Activities  []activityDocument   `yaml:"activities"`
	Connections []connectionDocument `yaml:"connections"`
}

type activityDocument struct {
	ID     string                   `yaml:"id"`
	Name   string                   `yaml:"name"`
	Type   string                   `yaml:"type"`
	Fields map[string]fieldDocument `yaml:"fields"`
}

type connectionDocument struct {
	ID      string `yaml:"id"`
	Source  string `yaml:"source"`
	Outcome string `yaml:"outcome"`
	Target  string `yaml:"target"`
}

// fieldDocument accepts either a bare string, read as plain text, or a
// {syntax, text} mapping.
type fieldDocument models.Expression

func (f *fieldDocument) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = fieldDocument(models.PlainText(node.Value))

		return nil
	}

	var expr models.Expression
	if err := node.Decode(&expr); err != nil {
		return err
	}

	*f = fieldDocument(expr)

	return nil
}

// variablesDocument keeps the order in which variables are written.
type variablesDocument struct {
	*models.Variables
}

func (v *variablesDocument) UnmarshalYAML(node *yaml.Node) error {
	v.Variables = models.NewVariables()

	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variables must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("variable %s: %w", node.Content[i].Value, err)
		}

		v.Set(node.Content[i].Value, value)
	}

	return nil
}

func (d *document) workflow() *models.Workflow {
	wf := &models.Workflow{
		ID:          d.ID,
		Name:        d.Name,
		Kind:        models.WorkflowKindDefinition,
		Activities:  make([]*models.Activity, 0, len(d.Activities)),
		Connections: make([]*models.Connection, 0, len(d.Connections)),
		Variables:   d.Variables.Variables,
	}

	if wf.Variables == nil {
		wf.Variables = models.NewVariables()
	}

	for _, a := range d.Activities {
		activity := &models.Activity{ID: a.ID, Name: a.Name, Type: a.Type}

		if len(a.Fields) > 0 {
			activity.Fields = make(map[string]models.Expression, len(a.Fields))
			for name, field := range a.Fields {
				activity.Fields[name] = models.Expression(field)
			}
		}

		wf.Activities = append(wf.Activities, activity)
	}

	for _, c := range d.Connections {
		outcome := c.Outcome
		if outcome == "" {
			outcome = protocol.OutcomeDone
		}

		id := c.ID
		if id == "" {
			id = models.MakeConnectionID(c.Source, outcome, c.Target)
		}

		wf.Connections = append(wf.Connections, &models.Connection{
			ID:      id,
			Source:  c.Source,
			Outcome: outcome,
			Target:  c.Target,
		})
	}

	return wf
}
