package models

func greetingDefinition() *Workflow {
	return &Workflow{
		ID:   "greeting",
		Name: "Greeting",
		Kind: WorkflowKindDefinition,
		Activities: []*Activity{
			{ID: "start", Name: "go", Type: "Signal"},
			{ID: "say", Type: "WriteLine", Fields: map[string]Expression{"text": Template("{{.greeting}}")}},
			{ID: "wait", Name: "approve", Type: "Signal"},
			{ID: "done", Type: "WriteLine", Fields: map[string]Expression{"text": PlainText("bye")}},
		},
		Connections: []*Connection{
			{ID: "c1", Source: "start", Outcome: "Done", Target: "say"},
			{ID: "c2", Source: "say", Outcome: "Done", Target: "wait"},
			{ID: "c3", Source: "wait", Outcome: "Done", Target: "done"},
		},
		Variables: VariablesFrom(map[string]any{"greeting": "hello"}),
	}
}
