package buildctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   Context
	}{
		{name: "no flags defaults to stable", params: Params{}, want: Stable},
		{name: "explicit wins over flags", params: Params{Explicit: "rc", Alpha: true, Beta: true}, want: RC},
		{name: "explicit is case-insensitive", params: Params{Explicit: " Beta "}, want: Beta},
		{name: "alpha beats beta", params: Params{Alpha: true, Beta: true}, want: Alpha},
		{name: "beta beats rc", params: Params{Beta: true, RC: true, Stable: true}, want: Beta},
		{name: "rc beats stable", params: Params{RC: true, Stable: true}, want: RC},
		{name: "stable flag", params: Params{Stable: true}, want: Stable},
		{name: "blank explicit falls through", params: Params{Explicit: "  ", RC: true}, want: RC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_UnknownExplicit(t *testing.T) {
	_, err := Select(Params{Explicit: "nightly", Alpha: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownContext)
	assert.Contains(t, err.Error(), "nightly")
}

func TestIsRelease(t *testing.T) {
	tests := []struct {
		name  string
		tasks []string
		want  bool
	}{
		{name: "assembleRelease", tasks: []string{"assembleRelease"}, want: true},
		{name: "bundleRelease with project path", tasks: []string{":app:bundleRelease"}, want: true},
		{name: "flavored release", tasks: []string{"assembleBetaRelease"}, want: true},
		{name: "debug assembly", tasks: []string{"assembleDebug"}, want: false},
		{name: "release without packaging", tasks: []string{"lintRelease"}, want: false},
		{name: "lowercase release marker", tasks: []string{"assemblerelease"}, want: false},
		{name: "one release among many", tasks: []string{"clean", "assembleRelease"}, want: true},
		{name: "no tasks", tasks: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRelease(tt.tasks))
		})
	}
}

func TestContext_Label(t *testing.T) {
	assert.Equal(t, "0.9.4", Alpha.Label(4))
	assert.Equal(t, "0.9.4", Beta.Label(4))
	assert.Equal(t, "0.9.9.2", RC.Label(2))
	assert.Equal(t, "1.0.7", Stable.Label(7))
}

func TestContext_Capitalized(t *testing.T) {
	assert.Equal(t, "Alpha", Alpha.Capitalized())
	assert.Equal(t, "Rc", RC.Capitalized())
	assert.Equal(t, "Stable", Stable.Capitalized())
}

func TestContext_CounterKey(t *testing.T) {
	assert.Equal(t, "beta_count", Beta.CounterKey())
}
