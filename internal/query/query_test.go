package query

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theRebelliousNerd/desloppify/internal/score"
)

func TestNewPopulatesCurrentScoresOnly(t *testing.T) {
	doc := New("scan", score.Snapshot{Overall: 91.2, Objective: 88, Strict: 80.5, Verified: 75}, nil)
	require.Equal(t, "scan", doc.Command)
	require.Equal(t, 91.2, doc.OverallScore)
	require.Nil(t, doc.PrevOverallScore)
}

func TestNewPopulatesPreviousScoresWhenGiven(t *testing.T) {
	prev := score.Snapshot{Overall: 80, Objective: 80, Strict: 70, Verified: 60}
	doc := New("resolve", score.Snapshot{Overall: 85, Objective: 85, Strict: 75, Verified: 65}, &prev)
	require.NotNil(t, doc.PrevStrictScore)
	require.Equal(t, 70.0, *doc.PrevStrictScore)
}

func TestMarshalJSONFlattensExtraFields(t *testing.T) {
	doc := New("plan-next", score.Snapshot{Overall: 100, Objective: 100, Strict: 100, Verified: 100}, nil).
		WithExtra("items", []string{"a", "b"}).
		WithExtra("queue", map[string]any{"tier": 1})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "plan-next", out["command"])
	require.Equal(t, []any{"a", "b"}, out["items"])
	require.NotNil(t, out["queue"])
	require.Equal(t, 100.0, out["overall_score"])
}

func TestErrorDocumentCarriesMessageOnly(t *testing.T) {
	doc := ErrorDocument("scan", errors.New("detector panicked"))
	require.Equal(t, "scan", doc.Command)
	require.NotEmpty(t, doc.Error)
}

func TestWriteIsAtomicAndReadable(t *testing.T) {
	dir := t.TempDir()
	doc := New("scan", score.Snapshot{Overall: 100, Objective: 100, Strict: 100, Verified: 100}, nil)

	require.NoError(t, Write(dir, doc))

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "scan", out["command"])

	entries, err := os.ReadDir(filepath.Dir(Path(dir)))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-")
	}
}
