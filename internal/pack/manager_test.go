package pack

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/remolder/internal/format"
	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/remold"
	"github.com/agentic-research/remolder/internal/resource"
	"github.com/agentic-research/remolder/internal/tree"
)

const managerManifest = `
config:
  flavor: vanilla
remolders:
  - name: version
    kind: jsonpath
    targets: ["data/*"]
    op: set
    path: $.version
    value: 2
  - name: tag
    kind: jsonpath
    targets: ["data/*.json"]
    packs: ["vanilla"]
    op: append
    path: $.tags
    value: vanilla
  - name: chocolate-only
    kind: merge
    targets: ["data/*"]
    when:
      value: flavor
      predicates:
        - type: equals
          value: chocolate
    value: {chocolate: true}
`

func newManager(t *testing.T, manifest string, config map[string]any, opts ...Option) *Manager {
	t.Helper()
	m, err := ParseManifest([]byte(manifest))
	require.NoError(t, err)
	mgr, err := NewManager(format.Defaults(), m, config, opts...)
	require.NoError(t, err)
	return mgr
}

func parseBody(t *testing.T, res resource.Resource) any {
	t.Helper()
	data, err := res.ReadAll()
	require.NoError(t, err)
	v, err := tree.ParseLenient(data)
	require.NoError(t, err)
	return v
}

func TestManager_Route(t *testing.T) {
	mgr := newManager(t, managerManifest, nil)

	d, entries, ok := mgr.Route("data/a.json")
	require.True(t, ok)
	assert.Equal(t, "json", d.Name())
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Transformation.String(), "version")
	assert.Contains(t, entries[1].Transformation.String(), "tag")

	d, entries, ok = mgr.Route("data/a.yaml")
	require.True(t, ok)
	assert.Equal(t, "yaml", d.Name())
	assert.Len(t, entries, 1)

	_, entries, ok = mgr.Route("other/a.json")
	assert.True(t, ok)
	assert.Empty(t, entries)

	_, _, ok = mgr.Route("data/readme.txt")
	assert.False(t, ok)
}

func TestManager_Remold(t *testing.T) {
	mgr := newManager(t, managerManifest, nil)

	out, err := mgr.Remold("data/a.json", resource.FromBytes("vanilla", []byte(`{"tags": ["base"]}`)))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"tags":    []any{"base", "vanilla"},
		"version": int64(2),
	}, parseBody(t, out))

	// The tag remolder only applies to the vanilla pack.
	out, err = mgr.Remold("data/a.json", resource.FromBytes("other", []byte(`{"tags": []}`)))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tags": []any{}, "version": int64(2)}, parseBody(t, out))

	out, err = mgr.Remold("data/a.yaml", resource.FromBytes("vanilla", []byte("name: x\n")))
	require.NoError(t, err)
	body, err := out.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "name: x\nversion: 2\n", string(body))
}

func TestManager_UntargetedIsUntouched(t *testing.T) {
	mgr := newManager(t, managerManifest, nil)

	for _, loc := range []string{"other/a.json", "data/readme.txt"} {
		in := resource.FromBytes("vanilla", []byte(`{ "keep":   "spacing" }`))
		out, err := mgr.Remold(loc, in)
		require.NoError(t, err)
		body, err := out.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, `{ "keep":   "spacing" }`, string(body), loc)
	}
}

func TestManager_ConfigOverrides(t *testing.T) {
	mgr := newManager(t, managerManifest, map[string]any{"flavor": "chocolate"})

	_, entries, ok := mgr.Route("data/a.yaml")
	require.True(t, ok)
	require.Len(t, entries, 2)

	out, err := mgr.Remold("data/a.json", resource.FromBytes("p", []byte(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"chocolate": true, "version": int64(2)}, parseBody(t, out))
}

func TestManager_FailureKeepsOriginal(t *testing.T) {
	const manifest = `
remolders:
  - name: explode
    kind: lua
    targets: ["*.json"]
    script: |
      function remold(doc, meta) error("boom") end
`
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Debug})
	mgr := newManager(t, manifest, nil, WithLogger(logger))

	in := resource.FromBytes("p", []byte(`{"a": 1}`))
	out, err := mgr.Remold("a.json", in)
	require.Error(t, err)

	var terr *remold.TransformationError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 0, terr.Index)
	body, rerr := out.ReadAll()
	require.NoError(t, rerr)
	assert.Equal(t, `{"a": 1}`, string(body))

	assert.Contains(t, buf.String(), "remold_id=")
	assert.Contains(t, buf.String(), "error while applying remolder")
}

func TestNewManager_Errors(t *testing.T) {
	t.Run("bad definition", func(t *testing.T) {
		m, err := ParseManifest([]byte("remolders:\n  - kind: jsonpath\n    targets: [a]\n"))
		require.NoError(t, err)
		_, err = NewManager(format.Defaults(), m, nil)
		var derr *molding.DefinitionError
		require.True(t, errors.As(err, &derr))
	})
	t.Run("bad condition", func(t *testing.T) {
		m, err := ParseManifest([]byte("remolders:\n  - kind: merge\n    targets: [a]\n    value: {}\n    when: {value: missing}\n"))
		require.NoError(t, err)
		_, err = NewManager(format.Defaults(), m, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no config value")
	})
}

func TestManager_Run(t *testing.T) {
	src := writeFiles(t, map[string]string{
		"data/a.json":  `{"tags": []}`,
		"data/b.json":  `{"a": [1, 2`,
		"data/c.yaml":  "c: 1\n",
		"notes.txt":    "hello",
		"other/d.json": `{}`,
	})
	mgr := newManager(t, managerManifest, nil, WithWorkers(2))

	var got []Outcome
	err := mgr.Run(context.Background(), src, func(o Outcome) error {
		got = append(got, o)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 5)
	locs := make([]string, len(got))
	for i, o := range got {
		locs[i] = o.Location
	}
	assert.Equal(t, []string{"data/a.json", "data/b.json", "data/c.yaml", "notes.txt", "other/d.json"}, locs)

	assert.True(t, got[0].Routed)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, map[string]any{"tags": []any{"vanilla"}, "version": int64(2)}, parseBody(t, got[0].Remolded))

	assert.True(t, got[1].Routed)
	var derr *remold.DecodeError
	assert.True(t, errors.As(got[1].Err, &derr))

	assert.True(t, got[2].Routed)
	assert.NoError(t, got[2].Err)

	assert.False(t, got[3].Routed)
	assert.False(t, got[4].Routed)
	body, err := got[4].Remolded.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(body))
}

func TestManager_RunStopsOnCallbackError(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.json": `{}`, "b.json": `{}`})
	mgr := newManager(t, `remolders: []`, nil)

	stop := errors.New("stop")
	calls := 0
	err := mgr.Run(context.Background(), src, func(Outcome) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestManager_RunCanceled(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.json": `{}`})
	mgr := newManager(t, `remolders: []`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mgr.Run(ctx, src, func(Outcome) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
