package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow documents with the columns queries filter on
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				kind VARCHAR(50) NOT NULL CHECK (kind IN ('definition', 'instance')),
				definition_id VARCHAR(255) NOT NULL DEFAULT '',
				version BIGINT NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT '',
				body TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_kind ON workflows(kind);
			CREATE INDEX idx_workflows_definition_id ON workflows(definition_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			-- Start and blocking activity names per workflow
			CREATE TABLE workflow_activity_index (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				role VARCHAR(50) NOT NULL CHECK (role IN ('start', 'blocking')),
				activity_name VARCHAR(255) NOT NULL,
				PRIMARY KEY (workflow_id, role, activity_name)
			);

			CREATE INDEX idx_workflow_activity_index_lookup ON workflow_activity_index(role, activity_name);
		`,
	}
}
