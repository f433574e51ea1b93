package persistence

import (
	"slices"
	"strings"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/specification"
)

// Index roles stored by backends that maintain secondary indexes.
const (
	IndexRoleStart    = "start"
	IndexRoleBlocking = "blocking"
)

// IndexEntry is one (role, activity name) pair a workflow is reachable by.
type IndexEntry struct {
	Role string
	Name string
}

// IndexEntriesFor returns the deduplicated, sorted index entries of a workflow.
// Unnamed activities are never indexed since no trigger can name them.
func IndexEntriesFor(workflow *models.Workflow) []IndexEntry {
	var entries []IndexEntry

	for _, activity := range workflow.StartActivities() {
		if activity.Name != "" {
			entries = append(entries, IndexEntry{Role: IndexRoleStart, Name: activity.Name})
		}
	}

	for _, id := range workflow.BlockingActivities {
		if activity := workflow.Activity(id); activity != nil && activity.Name != "" {
			entries = append(entries, IndexEntry{Role: IndexRoleBlocking, Name: activity.Name})
		}
	}

	slices.SortFunc(entries, func(a, b IndexEntry) int {
		if c := strings.Compare(a.Role, b.Role); c != 0 {
			return c
		}

		return strings.Compare(a.Name, b.Name)
	})

	return slices.Compact(entries)
}

// IndexLookup is the single most selective index probe for a specification.
type IndexLookup struct {
	Role string // Empty when only the kind can be used
	Name string
	Kind models.WorkflowKind
	None bool // The specification cannot match anything
}

// LookupFor picks the index probe a backend should use before filtering.
func LookupFor(spec specification.Specification) IndexLookup {
	hints := specification.HintsFor(spec)

	lookup := IndexLookup{Kind: hints.Kind, None: hints.Contradicted}

	switch {
	case len(hints.BlockedOn) > 0:
		lookup.Role, lookup.Name = IndexRoleBlocking, hints.BlockedOn[0]
	case len(hints.StartsWith) > 0:
		lookup.Role, lookup.Name = IndexRoleStart, hints.StartsWith[0]
	}

	return lookup
}

// Filter keeps the workflows satisfying spec and orders them oldest first.
func Filter(workflows []*models.Workflow, spec specification.Specification) []*models.Workflow {
	matched := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if spec.IsSatisfiedBy(workflow) {
			matched = append(matched, workflow)
		}
	}

	SortByCreation(matched)

	return matched
}

// SortByCreation orders workflows by creation time, then ID.
func SortByCreation(workflows []*models.Workflow) {
	slices.SortStableFunc(workflows, func(a, b *models.Workflow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})
}

// ValidateID rejects identifiers that cannot be used as file names or keys.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidWorkflowID
	}

	return nil
}
