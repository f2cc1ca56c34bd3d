package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyslice/pkg/pyast"
)

func TestPrintNode_RendersVerbatimText(t *testing.T) {
	mod, err := pyast.Parse("x = 1 + 2\n", "cell1")
	require.NoError(t, err)
	stmt := mod.Root.Statements()[0]
	assert.Equal(t, "x = 1 + 2", PrintNode(stmt))
}

func TestPrintNode_Nil(t *testing.T) {
	assert.Equal(t, "", PrintNode(nil))
}
