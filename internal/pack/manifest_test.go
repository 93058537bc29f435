package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
config:
  minify: true
  flavor: vanilla
remolders:
  - name: bump
    kind: jsonpath
    targets: ["data/*.json", "data/*.yaml"]
    op: set
    path: $.version
    value: 2
  - kind: merge
    targets: ["data/*"]
    packs: ["vanilla*"]
    when:
      value: flavor
      predicates:
        - type: equals
          value: vanilla
    value:
      tags: {stable: true}
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "1", m.Version)
	assert.Equal(t, true, m.Config["minify"])
	require.Len(t, m.Remolders, 2)

	bump := m.Remolders[0]
	assert.Equal(t, "bump", bump.Name)
	assert.Equal(t, "jsonpath", bump.Kind)
	assert.Equal(t, []string{"data/*.json", "data/*.yaml"}, bump.Targets)
	assert.Equal(t, "set", bump.Params["op"])
	assert.Equal(t, "$.version", bump.Params["path"])
	assert.Equal(t, 2, bump.Params["value"])
	assert.NotContains(t, bump.Params, "kind")
	assert.NotContains(t, bump.Params, "targets")

	merge := m.Remolders[1]
	assert.Equal(t, "merge#1", merge.Name)
	assert.Equal(t, []string{"vanilla*"}, merge.Packs)
	require.NotNil(t, merge.When)
	assert.Equal(t, "flavor", merge.When.Value)
	require.Len(t, merge.When.Predicates, 1)
	assert.Equal(t, "equals", merge.When.Predicates[0].Type)
}

func TestParseManifest_Defaults(t *testing.T) {
	m, err := ParseManifest([]byte(`remolders: []`))
	require.NoError(t, err)
	assert.Equal(t, "1", m.Version)
	assert.NotNil(t, m.Config)
	assert.Empty(t, m.Remolders)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"bad yaml", "remolders: [", "failed to parse manifest YAML"},
		{"missing kind", "remolders:\n  - targets: [a]\n", "missing kind"},
		{"no targets", "remolders:\n  - kind: lua\n", "no targets"},
		{"bad target", "remolders:\n  - kind: lua\n    targets: ['[']\n", "bad pattern"},
		{"bad pack", "remolders:\n  - kind: lua\n    targets: [a]\n    packs: ['[']\n", "bad pattern"},
		{"condition without value", "remolders:\n  - kind: lua\n    targets: [a]\n    when: {inverted: true}\n", "condition without a value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseManifest_ReportsEveryProblem(t *testing.T) {
	_, err := ParseManifest([]byte("remolders:\n  - targets: [a]\n  - kind: lua\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing kind")
	assert.Contains(t, err.Error(), "no targets")
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "remolders.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sampleManifest), 0o644))

	m, err := LoadManifest(p)
	require.NoError(t, err)
	assert.Len(t, m.Remolders, 2)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}
