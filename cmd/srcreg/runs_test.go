package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/registry"
	"srcreg/internal/runstore"
)

func openEnvStore(t *testing.T, env *appEnv) *runstore.Store {
	t.Helper()
	store, err := runstore.OpenStore(env.root, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunsList_Empty(t *testing.T) {
	env := newTestEnv(t)
	store := openEnvStore(t, env)

	resp, err := executeRunsList(context.Background(), store, 0)
	require.NoError(t, err)
	assert.NotNil(t, resp.Runs)
	assert.Empty(t, resp.Runs)

	out, err := FormatResponse(resp, FormatHuman)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestRunsShow_Errors(t *testing.T) {
	env := newTestEnv(t)
	input := writeInput(t, env, "sources.csv", scenarioCSV)
	result, err := executeNormalize(context.Background(), env, normalizeOptions{Input: input, OutDir: filepath.Join(env.root, "out")})
	require.NoError(t, err)

	store := openEnvStore(t, env)
	ctx := context.Background()

	_, err = executeRunsShow(ctx, store, "does-not-exist", "")
	assert.Equal(t, srcerrors.RunNotFound, srcerrors.CodeOf(err))

	_, err = executeRunsShow(ctx, store, result.Summary.RunID, `status ==`)
	assert.Equal(t, srcerrors.FilterInvalid, srcerrors.CodeOf(err))

	resp, err := executeRunsShow(ctx, store, result.Summary.RunID, `source_type == "figma"`)
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "10:20", resp.Records[0].NodeID)

	resp, err = executeRunsShow(ctx, store, result.Summary.RunID, `row > 100`)
	require.NoError(t, err)
	assert.NotNil(t, resp.Records)
	assert.Empty(t, resp.Records)
}

func TestRunsPrune(t *testing.T) {
	env := newTestEnv(t)
	store := openEnvStore(t, env)
	ctx := context.Background()

	old := runstore.NewRun("old.csv", "csv", "d1", "out", registry.Summary{})
	old.CreatedAt = time.Now().UTC().Add(-10 * 24 * time.Hour)
	require.NoError(t, store.Save(ctx, old, nil))
	fresh := runstore.NewRun("new.csv", "csv", "d2", "out", registry.Summary{})
	require.NoError(t, store.Save(ctx, fresh, nil))

	var buf bytes.Buffer
	require.NoError(t, executeRunsPrune(ctx, &buf, store, 7))
	assert.Equal(t, "Deleted 1 run(s) older than 7 day(s).\n", buf.String())

	resp, err := executeRunsList(ctx, store, 0)
	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, fresh.ID, resp.Runs[0].ID)
}
