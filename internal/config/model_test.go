package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	m := &Model{Plugins: []Plugin{{Name: "demo"}}}

	m.ApplyDefaults()

	want := &Model{
		TickRate:   60,
		SearchDirs: []string{"./plugins"},
		Plugins:    []Plugin{{Name: "demo"}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("ApplyDefaults() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyDefaults_KeepsConfiguredValues(t *testing.T) {
	m := &Model{TickRate: 30, SearchDirs: []string{"/opt/plugins"}}

	m.ApplyDefaults()

	assert.InDelta(t, 30.0, m.TickRate, 0)
	assert.Equal(t, []string{"/opt/plugins"}, m.SearchDirs)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		model   Model
		wantErr bool
	}{
		{name: "defaults", model: *Default()},
		{name: "negative tick rate", model: Model{TickRate: -1}, wantErr: true},
		{name: "empty search dir", model: Model{TickRate: 1, SearchDirs: []string{""}}, wantErr: true},
		{name: "unnamed plugin", model: Model{TickRate: 1, Plugins: []Plugin{{}}}, wantErr: true},
		{name: "duplicate plugin", model: Model{TickRate: 1, Plugins: []Plugin{{Name: "a"}, {Name: "a"}}}, wantErr: true},
		{name: "two plugins", model: Model{TickRate: 1, Plugins: []Plugin{{Name: "a"}, {Name: "b"}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.model.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	m := &Model{TickRate: 5, SearchDirs: []string{"a"}, Plugins: []Plugin{{Name: "p", Settings: map[string]string{"k": "v"}}}}

	c := m.Clone()
	c.SearchDirs[0] = "b"
	c.Plugins[0].Settings["k"] = "changed"

	assert.Equal(t, "a", m.SearchDirs[0])
	assert.Equal(t, "v", m.Plugins[0].Settings["k"])
}
