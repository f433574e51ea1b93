package fault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/testutil"
)

func TestFault_Execute(t *testing.T) {
	activity := testutil.CreateTestActivity(testutil.WithType(Type), testutil.WithField(FieldMessage, models.Template("order {{.id}} rejected")))
	wf := testutil.CreateTestDefinition("wf", activity)
	wf.Variables.Set("id", "A1")

	_, err := NewFault(activity).Execute(context.Background(), testutil.NewFakeScope(wf, activity))
	assert.EqualError(t, err, "order A1 rejected")
}
