package libspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModule_BareStringFunction(t *testing.T) {
	mod, err := LoadModule([]byte(`{"name":"m","functions":["print"]}`))
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	assert.Equal(t, "print", mod.Functions[0].Name)
	assert.Empty(t, mod.Functions[0].Updates)
}

func TestLoadModule_FullFunctionObject(t *testing.T) {
	mod, err := LoadModule([]byte(`{
		"name": "m",
		"functions": [
			{"name": "f", "updates": [0, 1], "returns": "int"}
		]
	}`))
	require.NoError(t, err)
	f := mod.Function("f")
	require.NotNil(t, f)
	assert.True(t, f.UpdatesPosition(0))
	assert.True(t, f.UpdatesPosition(1))
	assert.False(t, f.UpdatesPosition(2))
}

func TestFunctionSpec_UpdatesReceiver(t *testing.T) {
	f := &FunctionSpec{Updates: []any{float64(0)}}
	assert.True(t, f.UpdatesReceiver())

	g := &FunctionSpec{Updates: []any{float64(1)}}
	assert.False(t, g.UpdatesReceiver())

	var nilSpec *FunctionSpec
	assert.False(t, nilSpec.UpdatesReceiver())
}

func TestModuleSpec_TypesShorthand(t *testing.T) {
	mod, err := LoadModule([]byte(`{
		"name": "m",
		"types": {
			"list": [
				{"name": "append", "updates": [0]},
				"copy"
			]
		}
	}`))
	require.NoError(t, err)
	listType := mod.Types["list"]
	require.NotNil(t, listType)
	assert.Equal(t, "list", listType.Name)

	appendSpec := listType.Method("append")
	require.NotNil(t, appendSpec)
	assert.True(t, appendSpec.UpdatesPosition(0))

	copySpec := listType.Method("copy")
	require.NotNil(t, copySpec)
	assert.Empty(t, copySpec.Updates)

	assert.Nil(t, listType.Method("nonexistent"))
}

func TestModuleSpec_ResolveReturns(t *testing.T) {
	mod, err := LoadModule([]byte(`{
		"name": "m",
		"functions": [{"name": "make", "returns": "Widget"}],
		"types": {
			"Widget": [{"name": "spin", "returns": "Widget"}]
		}
	}`))
	require.NoError(t, err)

	f := mod.Function("make")
	require.NotNil(t, f)
	require.NotNil(t, f.ReturnsType)
	assert.Equal(t, "Widget", f.ReturnsType.Name)

	spin := mod.Types["Widget"].Method("spin")
	require.NotNil(t, spin)
	require.NotNil(t, spin.ReturnsType)
	assert.Equal(t, "Widget", spin.ReturnsType.Name)
}

func TestModuleSpec_UnknownReturnTypeLeavesNilReturnsType(t *testing.T) {
	mod, err := LoadModule([]byte(`{
		"name": "m",
		"functions": [{"name": "f", "returns": "SomethingNotDeclared"}]
	}`))
	require.NoError(t, err)
	f := mod.Function("f")
	require.NotNil(t, f)
	assert.Nil(t, f.ReturnsType)
}

func TestModuleSpec_NestedModules(t *testing.T) {
	mod, err := LoadModule([]byte(`{
		"name": "numpy",
		"modules": {
			"random": {
				"name": "random",
				"functions": ["rand"]
			}
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, mod.Modules["random"])
	assert.NotNil(t, mod.Modules["random"].Function("rand"))
}

func TestModuleSpec_FunctionReturnsNilWhenUnknown(t *testing.T) {
	var mod *ModuleSpec
	assert.Nil(t, mod.Function("anything"))

	mod = &ModuleSpec{}
	assert.Nil(t, mod.Function("anything"))
}
