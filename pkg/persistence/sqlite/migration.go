package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL CHECK (kind IN ('definition', 'instance')),
				definition_id TEXT NOT NULL DEFAULT '',
				version INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX idx_workflows_kind ON workflows(kind);
			CREATE INDEX idx_workflows_definition_id ON workflows(definition_id);

			CREATE TABLE workflow_activity_index (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				role TEXT NOT NULL CHECK (role IN ('start', 'blocking')),
				activity_name TEXT NOT NULL,
				PRIMARY KEY (workflow_id, role, activity_name)
			);

			CREATE INDEX idx_workflow_activity_index_lookup ON workflow_activity_index(role, activity_name);
		`,
	}
}
