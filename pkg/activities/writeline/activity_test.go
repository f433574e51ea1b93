package writeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
	"github.com/dukex/flowhost/pkg/testutil"
)

func TestWriteLine_Execute(t *testing.T) {
	var out bytes.Buffer

	activity := testutil.WriteLine("say", models.Template("Hello {{.name}}"))
	wf := testutil.CreateTestDefinition("wf", activity)
	wf.Variables.Set("name", "Ada")

	driver, err := NewWriteLineFactory(&out).Create(activity)
	require.NoError(t, err)

	result, err := driver.Execute(context.Background(), testutil.NewFakeScope(wf, activity))
	require.NoError(t, err)

	assert.Equal(t, protocol.Done(), result)
	assert.Equal(t, "Hello Ada\n", out.String())
}

func TestWriteLine_UndefinedReferenceFaults(t *testing.T) {
	var out bytes.Buffer

	activity := testutil.WriteLine("say", models.Template("Hello {{.name}}"))
	wf := testutil.CreateTestDefinition("wf", activity)

	driver, err := NewWriteLineFactory(&out).Create(activity)
	require.NoError(t, err)

	_, err = driver.Execute(context.Background(), testutil.NewFakeScope(wf, activity))
	assert.ErrorIs(t, err, expression.ErrUndefinedReference)
	assert.Empty(t, out.String())
}

func TestWriteLineFactory(t *testing.T) {
	factory := NewWriteLineFactory(nil)

	assert.Equal(t, Type, factory.ID())
	assert.NotEmpty(t, factory.Name())
	assert.NotEmpty(t, factory.Description())
	assert.Contains(t, factory.Schema()["required"], FieldText)
}
