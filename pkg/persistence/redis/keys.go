package redis

// All keys are prefixed with "flowhost:" to share a database safely.
const keyPrefix = "flowhost:"

// workflowKey is the hash holding one workflow: flowhost:workflow:{id}
func workflowKey(id string) string { return keyPrefix + "workflow:" + id }

// kindKey is the set of workflow IDs of one kind: flowhost:workflows:{kind}
func kindKey(kind string) string { return keyPrefix + "workflows:" + kind }

// indexKey is the set of workflow IDs reachable by an activity name: flowhost:index:{role}:{name}
func indexKey(role, name string) string { return keyPrefix + "index:" + role + ":" + name }
