package host

import "errors"

// ErrNotDefinition is returned when StartWorkflow is given an instance.
var ErrNotDefinition = errors.New("workflow is not a definition")
