package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) (*Tree, map[string]string) {
	t.Helper()
	tr := New()
	ids := map[string]string{}
	var err error
	ids["src"], err = tr.AddFolder("src", "")
	require.NoError(t, err)
	ids["main.ts"], err = tr.AddFile("main.ts", ids["src"])
	require.NoError(t, err)
	ids["lib"], err = tr.AddFolder("lib", ids["src"])
	require.NoError(t, err)
	ids["util.ts"], err = tr.AddFile("util.ts", ids["lib"])
	require.NoError(t, err)
	ids["README.md"], err = tr.AddFile("README.md", "")
	require.NoError(t, err)
	require.NoError(t, tr.SetContent(ids["main.ts"], "console.log(1)"))
	return tr, ids
}

func TestTree_Walk(t *testing.T) {
	tr, _ := buildSample(t)

	type visit struct {
		name  string
		depth int
	}
	var got []visit
	tr.Walk(func(n Node, depth int) {
		got = append(got, visit{n.Name, depth})
	})

	assert.Equal(t, []visit{
		{"src", 0},
		{"main.ts", 1},
		{"lib", 1},
		{"util.ts", 2},
		{"README.md", 0},
	}, got)
}

func TestTree_DescendantsAndAncestors(t *testing.T) {
	tr, ids := buildSample(t)

	assert.ElementsMatch(t,
		[]string{ids["main.ts"], ids["lib"], ids["util.ts"]},
		tr.Descendants(ids["src"]))
	assert.Empty(t, tr.Descendants(ids["README.md"]))

	assert.Equal(t, []string{ids["lib"], ids["src"]}, tr.Ancestors(ids["util.ts"]))
	assert.Empty(t, tr.Ancestors(ids["src"]))
	assert.Empty(t, tr.Ancestors("missing"))

	assert.True(t, tr.IsAncestor(ids["src"], ids["util.ts"]))
	assert.False(t, tr.IsAncestor(ids["util.ts"], ids["src"]))
}

func TestTree_Path(t *testing.T) {
	tr, ids := buildSample(t)

	assert.Equal(t, "src/lib/util.ts", tr.Path(ids["util.ts"]))
	assert.Equal(t, "README.md", tr.Path(ids["README.md"]))
	assert.Equal(t, "", tr.Path("missing"))
}

func TestTree_JSONRoundTrip(t *testing.T) {
	tr, ids := buildSample(t)

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	var decoded Tree
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, tr.Nodes(), decoded.Nodes())
	assert.Equal(t, "console.log(1)", decoded.Content(ids["main.ts"]))
	assert.NoError(t, decoded.Validate())
}

func TestNode_JSONParent(t *testing.T) {
	t.Run("root parent is null", func(t *testing.T) {
		data, err := json.Marshal(Node{ID: "1", Name: "a", Type: TypeFile})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"1","name":"a","type":"file","parent_id":null}`, string(data))
	})

	t.Run("camelCase parent accepted", func(t *testing.T) {
		var n Node
		require.NoError(t, json.Unmarshal([]byte(`{"id":"2","name":"b","type":"file","parentId":"1"}`), &n))
		assert.Equal(t, "1", n.ParentID)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		var n Node
		err := json.Unmarshal([]byte(`{"id":"2","name":"b","type":"link"}`), &n)
		assert.ErrorIs(t, err, ErrInvalidNodeType)
	})
}

func TestFromMaps(t *testing.T) {
	folder := Node{ID: "f", Name: "dir", Type: TypeFolder}
	file := Node{ID: "x", Name: "x.txt", Type: TypeFile, ParentID: "f"}

	t.Run("orders missing ids deterministically", func(t *testing.T) {
		tr, err := FromMaps(map[string]Node{"f": folder, "x": file}, nil, map[string]string{"x": "body"})
		require.NoError(t, err)
		assert.Equal(t, []Node{folder, file}, tr.Nodes())
		assert.Equal(t, "body", tr.Content("x"))
	})

	t.Run("drops content of unknown ids", func(t *testing.T) {
		tr, err := FromMaps(map[string]Node{"f": folder}, []string{"f"}, map[string]string{"gone": "y"})
		require.NoError(t, err)
		assert.Equal(t, "", tr.Content("gone"))
		assert.NoError(t, tr.Validate())
	})

	t.Run("rejects content on a folder", func(t *testing.T) {
		_, err := FromMaps(map[string]Node{"f": folder}, []string{"f"}, map[string]string{"f": "x"})
		assert.ErrorIs(t, err, ErrOrphanedContent)
	})

	t.Run("dangling parent", func(t *testing.T) {
		_, err := FromMaps(map[string]Node{"x": file}, nil, nil)
		assert.ErrorIs(t, err, ErrParentNotFound)
	})

	t.Run("cycle", func(t *testing.T) {
		a := Node{ID: "a", Name: "a", Type: TypeFolder, ParentID: "b"}
		b := Node{ID: "b", Name: "b", Type: TypeFolder, ParentID: "a"}
		_, err := FromMaps(map[string]Node{"a": a, "b": b}, nil, nil)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("duplicate siblings", func(t *testing.T) {
		one := Node{ID: "1", Name: "same", Type: TypeFile}
		two := Node{ID: "2", Name: "same", Type: TypeFile}
		_, err := FromMaps(map[string]Node{"1": one, "2": two}, nil, nil)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("key mismatch", func(t *testing.T) {
		_, err := FromMaps(map[string]Node{"other": folder}, nil, nil)
		assert.ErrorIs(t, err, ErrInconsistentTree)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := FromMaps(map[string]Node{"": {Name: "a", Type: TypeFolder}}, nil, nil)
		assert.ErrorIs(t, err, ErrInconsistentTree)
	})

	t.Run("own parent", func(t *testing.T) {
		self := Node{ID: "s", Name: "s", Type: TypeFolder, ParentID: "s"}
		_, err := FromMaps(map[string]Node{"s": self}, nil, nil)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("invalid name", func(t *testing.T) {
		bad := Node{ID: "n", Name: "a\nb", Type: TypeFile}
		_, err := FromMaps(map[string]Node{"n": bad}, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestTree_UnmarshalRejectsEmptyID(t *testing.T) {
	var tr Tree
	err := json.Unmarshal([]byte(`{"nodes":{"":{"name":"a","type":"folder"}}}`), &tr)
	assert.ErrorIs(t, err, ErrInconsistentTree)
}
