package project

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/metrics"
	"github.com/fyrsmithlabs/promptpack/internal/storage"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// flakyStore fails writes while failWrites is set.
type flakyStore struct {
	*storage.MemoryStore
	mu         sync.Mutex
	failWrites bool
	writes     int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = v
}

func newTestManager(t *testing.T) (Manager, *flakyStore, *logging.TestLogger) {
	t.Helper()
	store := newFlakyStore()
	tl := logging.NewTestLogger()
	return NewManager(context.Background(), store, WithLogger(tl.Logger), WithMetrics(metrics.New())), store, tl
}

func TestNewManager_SeedsDefaultProject(t *testing.T) {
	ctx := context.Background()
	mgr, store, tl := newTestManager(t)

	projects := mgr.List(ctx)
	require.Len(t, projects, 1)
	assert.Equal(t, DefaultName, projects[0].Name)

	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, projects[0].ID, active.ID)

	_, err = store.Get(ctx, KeyProjects)
	assert.NoError(t, err, "seeded state should be persisted")
	tl.AssertField(t, "registry loaded", "seeded", true)
}

func TestNewManager_LoadsPersistedState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := NewManager(ctx, store)
	created, err := first.Create(ctx, "Second")
	require.NoError(t, err)
	id, err := first.AddFile(ctx, "a.txt", "")
	require.NoError(t, err)
	require.NoError(t, first.SetContent(ctx, id, "hello"))
	require.NoError(t, first.Select(ctx, first.List(ctx)[0].ID))
	require.NoError(t, first.Select(ctx, created.ID))

	second := NewManager(ctx, store)
	assert.Len(t, second.List(ctx), 2)
	active, err := second.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)
	text, err := second.Content(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestNewManager_KeepsValidProjectsBesideBadTree(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	stored := `[{"id":"a","name":"Good"},` +
		`{"id":"b","name":"Bad","tree":{"nodes":{"n1":{"id":"n1","name":"x","type":"file","parent_id":"ghost"}}}}]`
	require.NoError(t, store.Set(ctx, KeyProjects, []byte(stored)))
	tl := logging.NewTestLogger()

	mgr := NewManager(ctx, store, WithLogger(tl.Logger))
	projects := mgr.List(ctx)
	require.Len(t, projects, 1)
	assert.Equal(t, "a", projects[0].ID)
	assert.Equal(t, "Good", projects[0].Name)
	tl.AssertLogged(t, zapcore.WarnLevel, "skipping unparsable stored project")
	tl.AssertField(t, "registry loaded", "seeded", false)

	data, err := store.Get(ctx, KeyProjects)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Good")
}

func TestNewManager_Fallbacks(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		records map[string]string
		want    int
	}{
		{name: "unparsable projects", records: map[string]string{KeyProjects: "{not json"}, want: 1},
		{name: "null projects", records: map[string]string{KeyProjects: "null"}, want: 1},
		{
			name: "invalid entries skipped",
			records: map[string]string{
				KeyProjects: `[{"id":"a","name":"A"},{"id":"","name":"bad"},{"id":"a","name":"dup"},{"id":"b","name":"B","tree":null}]`,
			},
			want: 2,
		},
		{
			name: "invalid tree skips only that project",
			records: map[string]string{
				KeyProjects: `[{"id":"a","name":"Good"},{"id":"b","name":"Bad","tree":{"nodes":{"n1":{"id":"n1","name":"x","type":"file","parent_id":"ghost"}}}}]`,
			},
			want: 1,
		},
		{
			name: "unknown current falls back to first",
			records: map[string]string{
				KeyProjects:       `[{"id":"a","name":"A"}]`,
				KeyCurrentProject: `"missing"`,
			},
			want: 1,
		},
		{
			name: "unparsable current",
			records: map[string]string{
				KeyProjects:       `[{"id":"a","name":"A"}]`,
				KeyCurrentProject: `[1]`,
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			for k, v := range tt.records {
				require.NoError(t, store.Set(ctx, k, []byte(v)))
			}
			tl := logging.NewTestLogger()

			mgr := NewManager(ctx, store, WithLogger(tl.Logger))
			projects := mgr.List(ctx)
			assert.Len(t, projects, tt.want)

			active, err := mgr.Active(ctx)
			require.NoError(t, err)
			assert.Equal(t, projects[0].ID, active.ID)
		})
	}
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	id, err := mgr.AddFile(ctx, "x", "")
	require.NoError(t, err)
	require.NoError(t, mgr.SelectNode(ctx, id))

	p, err := mgr.Create(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, p.Name)
	assert.Equal(t, 0, p.Tree.Len())
	assert.Equal(t, "", p.Instructions)

	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)
	assert.Equal(t, "", mgr.SelectedNode(ctx))

	projects := mgr.List(ctx)
	require.Len(t, projects, 2)
	assert.Equal(t, p.ID, projects[1].ID, "new projects are appended")
}

func TestManager_Rename(t *testing.T) {
	ctx := context.Background()
	mgr, store, _ := newTestManager(t)
	id := mgr.List(ctx)[0].ID

	writes := store.writes
	err := mgr.Rename(ctx, id, "   ")
	assert.ErrorIs(t, err, ErrEmptyProjectName)
	assert.Equal(t, writes, store.writes, "blank rename must not persist")

	assert.ErrorIs(t, mgr.Rename(ctx, "nope", "x"), ErrProjectNotFound)

	require.NoError(t, mgr.Rename(ctx, id, " Renamed "))
	p, err := mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.True(t, p.UpdatedAt.After(p.CreatedAt) || p.UpdatedAt.Equal(p.CreatedAt))
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	first := mgr.List(ctx)[0]

	assert.ErrorIs(t, mgr.Delete(ctx, first.ID), ErrLastProject)
	assert.ErrorIs(t, mgr.Delete(ctx, "missing"), ErrProjectNotFound)

	second, err := mgr.Create(ctx, "Second")
	require.NoError(t, err)
	third, err := mgr.Create(ctx, "Third")
	require.NoError(t, err)

	// Deleting an inactive project keeps the active one.
	require.NoError(t, mgr.Delete(ctx, second.ID))
	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, third.ID, active.ID)

	// Deleting the active project activates the first remaining one.
	id, err := mgr.AddFile(ctx, "f", "")
	require.NoError(t, err)
	require.NoError(t, mgr.SelectNode(ctx, id))
	require.NoError(t, mgr.Delete(ctx, third.ID))
	active, err = mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, "", mgr.SelectedNode(ctx))

	_, err = mgr.Get(ctx, third.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestManager_Select(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	first := mgr.List(ctx)[0]
	_, err := mgr.Create(ctx, "Other")
	require.NoError(t, err)

	id, err := mgr.AddFolder(ctx, "dir", "")
	require.NoError(t, err)
	require.NoError(t, mgr.SelectNode(ctx, id))

	assert.ErrorIs(t, mgr.Select(ctx, "unknown"), ErrProjectNotFound)
	assert.Equal(t, id, mgr.SelectedNode(ctx), "failed select keeps state")

	require.NoError(t, mgr.Select(ctx, first.ID))
	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, "", mgr.SelectedNode(ctx))
}

func TestManager_SelectNode(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	assert.ErrorIs(t, mgr.SelectNode(ctx, "ghost"), tree.ErrNodeNotFound)

	id, err := mgr.AddFile(ctx, "a", "")
	require.NoError(t, err)
	require.NoError(t, mgr.SelectNode(ctx, id))
	assert.Equal(t, id, mgr.SelectedNode(ctx))

	require.NoError(t, mgr.SelectNode(ctx, ""))
	assert.Equal(t, "", mgr.SelectedNode(ctx))
}

func TestManager_ScenarioDuplicateFile(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	_, err := mgr.AddFile(ctx, "a.txt", "")
	require.NoError(t, err)
	_, err = mgr.AddFile(ctx, "a.txt", "")
	assert.ErrorIs(t, err, tree.ErrDuplicateName)

	children, err := mgr.Children(ctx, "")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "a.txt", children[0].Name)
}

func TestManager_ScenarioMoveIntoDescendant(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	a, err := mgr.AddFolder(ctx, "A", "")
	require.NoError(t, err)
	b, err := mgr.AddFolder(ctx, "B", a)
	require.NoError(t, err)

	before, err := mgr.Active(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.MoveNode(ctx, a, b), tree.ErrCycle)

	after, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Tree.Nodes(), after.Tree.Nodes())
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestManager_ScenarioRemoveSelected(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	id, err := mgr.AddFile(ctx, "x", "")
	require.NoError(t, err)
	require.NoError(t, mgr.SetContent(ctx, id, "data"))
	require.NoError(t, mgr.SelectNode(ctx, id))

	removed, err := mgr.RemoveNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, removed)
	assert.Equal(t, "", mgr.SelectedNode(ctx))

	text, err := mgr.Content(ctx, id)
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
	assert.Equal(t, "", text)

	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", active.Tree.Content(id))
}

func TestManager_RemoveKeepsUnrelatedSelection(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	dir, err := mgr.AddFolder(ctx, "dir", "")
	require.NoError(t, err)
	inside, err := mgr.AddFile(ctx, "in.txt", dir)
	require.NoError(t, err)
	keep, err := mgr.AddFile(ctx, "keep.txt", "")
	require.NoError(t, err)

	require.NoError(t, mgr.SelectNode(ctx, keep))
	removed, err := mgr.RemoveNode(ctx, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{dir, inside}, removed)
	assert.Equal(t, keep, mgr.SelectedNode(ctx))

	_, err = mgr.RemoveNode(ctx, dir)
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
}

func TestManager_NodeDelegates(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	src, err := mgr.AddFolder(ctx, "src", "")
	require.NoError(t, err)
	lib, err := mgr.AddFolder(ctx, "lib", "")
	require.NoError(t, err)
	a, err := mgr.AddFile(ctx, "a.go", src)
	require.NoError(t, err)
	b, err := mgr.AddFile(ctx, "b.go", src)
	require.NoError(t, err)

	require.NoError(t, mgr.RenameNode(ctx, a, "main.go"))
	n, err := mgr.Node(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "main.go", n.Name)

	require.NoError(t, mgr.ReorderChildren(ctx, src, []string{b, a}))
	children, err := mgr.Children(ctx, src)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, b, children[0].ID)

	require.NoError(t, mgr.MoveNode(ctx, b, lib))
	n, err = mgr.Node(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, lib, n.ParentID)

	assert.ErrorIs(t, mgr.SetContent(ctx, src, "x"), tree.ErrNotAFile)
	_, err = mgr.Content(ctx, src)
	assert.ErrorIs(t, err, tree.ErrNotAFile)
	_, err = mgr.Children(ctx, a)
	assert.ErrorIs(t, err, tree.ErrParentNotFolder)
	_, err = mgr.Children(ctx, "nope")
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
	_, err = mgr.Node(ctx, "nope")
	assert.ErrorIs(t, err, tree.ErrNodeNotFound)
}

func TestManager_InstructionsAndClear(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	require.NoError(t, mgr.SetInstructions(ctx, "Explain the code"))
	id, err := mgr.AddFile(ctx, "f", "")
	require.NoError(t, err)
	require.NoError(t, mgr.SelectNode(ctx, id))

	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Explain the code", active.Instructions)

	require.NoError(t, mgr.Clear(ctx))
	active, err = mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", active.Instructions)
	assert.Equal(t, 0, active.Tree.Len())
	assert.Equal(t, "", mgr.SelectedNode(ctx))
}

func TestManager_ReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	_, err = active.Tree.AddFile("sneaky", "")
	require.NoError(t, err)
	active.Name = "mutated"

	again, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Tree.Len())
	assert.Equal(t, DefaultName, again.Name)
}

func TestManager_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	require.NoError(t, mgr.Rename(ctx, mgr.List(ctx)[0].ID, "My Demo"))
	require.NoError(t, mgr.SetInstructions(ctx, "Review"))
	src, err := mgr.AddFolder(ctx, "src", "")
	require.NoError(t, err)
	main, err := mgr.AddFile(ctx, "main.ts", src)
	require.NoError(t, err)
	require.NoError(t, mgr.SetContent(ctx, main, "console.log(1)"))

	original, err := mgr.Active(ctx)
	require.NoError(t, err)

	data, name, err := mgr.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "my-demo-prompt-project.json", name)

	imported, err := mgr.Import(ctx, data)
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, imported.ID)
	assert.Equal(t, original.Name, imported.Name)
	assert.Equal(t, original.Instructions, imported.Instructions)
	assert.Equal(t, original.Tree.Nodes(), imported.Tree.Nodes())
	assert.Equal(t, "console.log(1)", imported.Tree.Content(main))

	active, err := mgr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, imported.ID, active.ID)
	assert.Len(t, mgr.List(ctx), 2)

	_, _, err = mgr.Export(ctx, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestManager_ImportRejectsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	mgr, store, _ := newTestManager(t)
	before := mgr.List(ctx)
	writes := store.writes

	_, err := mgr.Import(ctx, []byte(`{"files": ["a"]}`))
	assert.ErrorIs(t, err, exchange.ErrInvalidDocument)
	assert.ErrorIs(t, err, exchange.ErrMissingName)

	_, err = mgr.Import(ctx, []byte(`garbage`))
	assert.ErrorIs(t, err, exchange.ErrInvalidDocument)

	assert.Equal(t, len(before), len(mgr.List(ctx)))
	assert.Equal(t, writes, store.writes)
}

func TestManager_ImportLegacy(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	p, err := mgr.Import(ctx, []byte(`{"id":"x","name":"Old","files":["a.js","b.js"],"fileContents":{"a.js":"1"}}`))
	require.NoError(t, err)
	assert.NotEqual(t, "x", p.ID)
	roots := p.Tree.Children("")
	require.Len(t, roots, 2)
	assert.Equal(t, "1", p.Tree.Content(roots[0].ID))
}

func TestManager_StorageFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	mgr, store, tl := newTestManager(t)
	failures := testutil.ToFloat64(metrics.New().StorageWriteFailures)

	store.setFail(true)
	id, err := mgr.AddFile(ctx, "still-here.txt", "")
	require.NoError(t, err, "write failures are not returned")

	n, err := mgr.Node(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "still-here.txt", n.Name)

	tl.AssertLogged(t, zapcore.WarnLevel, "failed to persist projects")
	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.New().StorageWriteFailures))

	store.setFail(false)
	require.NoError(t, mgr.SetContent(ctx, id, "x"))
	data, err := store.Get(ctx, KeyProjects)
	require.NoError(t, err)
	var stored []*Project
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "x", stored[0].Tree.Content(id))
}

func TestManager_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = mgr.AddFolder(ctx, "dir", "")
			_ = mgr.List(ctx)
			_, _ = mgr.Active(ctx)
		}(i)
	}
	wg.Wait()

	children, err := mgr.Children(ctx, "")
	require.NoError(t, err)
	assert.Len(t, children, 1, "only one of the racing adds wins the name")
}
