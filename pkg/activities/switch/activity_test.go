package switchactivity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
	"github.com/dukex/flowhost/pkg/testutil"
)

func TestSwitch_Execute(t *testing.T) {
	activity := testutil.CreateTestActivity(
		testutil.WithType(Type),
		testutil.WithField(FieldValue, models.Template("{{.status}}")),
		testutil.WithField("case.Approved", models.PlainText("ok")),
		testutil.WithField("case.Rejected", models.PlainText("nok")),
	)

	tests := []struct {
		status   string
		expected protocol.Result
	}{
		{status: "ok", expected: protocol.Outcome("Approved")},
		{status: "nok", expected: protocol.Outcome("Rejected")},
		{status: "other", expected: protocol.Outcome(OutcomeDefault)},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			wf := testutil.CreateTestDefinition("wf", activity)
			wf.Variables.Set("status", tt.status)

			driver, err := NewSwitchFactory().Create(activity)
			require.NoError(t, err)

			result, err := driver.Execute(context.Background(), testutil.NewFakeScope(wf, activity))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
