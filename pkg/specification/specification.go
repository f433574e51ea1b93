// Package specification provides composable predicates that select workflows.
// Repositories use the concrete predicate types as index hints and always
// re-check candidates with IsSatisfiedBy.
package specification

import "github.com/dukex/flowhost/pkg/models"

// Specification is a boolean predicate over a workflow.
type Specification interface {
	IsSatisfiedBy(workflow *models.Workflow) bool
}

// Func adapts a function to a Specification. Repositories cannot index it.
type Func func(workflow *models.Workflow) bool

func (f Func) IsSatisfiedBy(workflow *models.Workflow) bool {
	return f(workflow)
}

// All matches every workflow.
type All struct{}

func (All) IsSatisfiedBy(*models.Workflow) bool {
	return true
}

// IsDefinition matches workflow definitions.
type IsDefinition struct{}

func (IsDefinition) IsSatisfiedBy(workflow *models.Workflow) bool {
	return workflow.IsDefinition()
}

// IsInstance matches workflow instances.
type IsInstance struct{}

func (IsInstance) IsSatisfiedBy(workflow *models.Workflow) bool {
	return workflow.IsInstance()
}

// StartsWithActivity matches workflows with an entry point named Name.
type StartsWithActivity struct {
	Name string
}

func (s StartsWithActivity) IsSatisfiedBy(workflow *models.Workflow) bool {
	return len(workflow.StartActivitiesNamed(s.Name)) > 0
}

// IsBlockedOnActivity matches workflows with a blocking activity named Name.
type IsBlockedOnActivity struct {
	Name string
}

func (s IsBlockedOnActivity) IsSatisfiedBy(workflow *models.Workflow) bool {
	return len(workflow.BlockingActivitiesNamed(s.Name)) > 0
}

// AndSpecification matches when every operand matches. No operands match everything.
type AndSpecification struct {
	Specs []Specification
}

func (s AndSpecification) IsSatisfiedBy(workflow *models.Workflow) bool {
	for _, spec := range s.Specs {
		if !spec.IsSatisfiedBy(workflow) {
			return false
		}
	}

	return true
}

func And(specs ...Specification) AndSpecification {
	return AndSpecification{Specs: specs}
}

// Conjuncts flattens nested And specifications into their leaf operands.
func Conjuncts(spec Specification) []Specification {
	and, ok := spec.(AndSpecification)
	if !ok {
		return []Specification{spec}
	}

	var leaves []Specification
	for _, operand := range and.Specs {
		leaves = append(leaves, Conjuncts(operand)...)
	}

	return leaves
}

// HasStatus matches workflows in the given status.
type HasStatus struct {
	Status models.WorkflowStatus
}

func (s HasStatus) IsSatisfiedBy(workflow *models.Workflow) bool {
	return workflow.Status == s.Status
}

// DerivedFrom matches the instances of one definition.
type DerivedFrom struct {
	DefinitionID string
}

func (s DerivedFrom) IsSatisfiedBy(workflow *models.Workflow) bool {
	return workflow.IsInstance() && workflow.DefinitionID == s.DefinitionID
}

// Hints is what a repository index can answer for a conjunction.
type Hints struct {
	Kind         models.WorkflowKind // Empty when unconstrained
	StartsWith   []string
	BlockedOn    []string
	Contradicted bool // Both kinds were required, nothing can match
}

// HintsFor extracts index hints from the leaves of spec.
func HintsFor(spec Specification) Hints {
	var hints Hints

	setKind := func(kind models.WorkflowKind) {
		if hints.Kind != "" && hints.Kind != kind {
			hints.Contradicted = true
		}

		hints.Kind = kind
	}

	for _, leaf := range Conjuncts(spec) {
		switch s := leaf.(type) {
		case IsDefinition:
			setKind(models.WorkflowKindDefinition)
		case IsInstance:
			setKind(models.WorkflowKindInstance)
		case StartsWithActivity:
			hints.StartsWith = append(hints.StartsWith, s.Name)
		case IsBlockedOnActivity:
			hints.BlockedOn = append(hints.BlockedOn, s.Name)
		}
	}

	return hints
}

// Definitions returns the query used to start new workflows for a trigger.
func Definitions(startingWith string) Specification {
	return And(IsDefinition{}, StartsWithActivity{Name: startingWith})
}

// BlockedInstances returns the query used to resume workflows for a trigger.
func BlockedInstances(blockedOn string) Specification {
	return And(IsInstance{}, IsBlockedOnActivity{Name: blockedOn})
}
