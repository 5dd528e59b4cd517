package eventlog_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetkeep/overseer/internal/eventlog"
)

func TestAppendWritesNewlineDelimitedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := eventlog.Open(path)
	require.NoError(t, err)

	require.NoError(t, log.Append("node_up", "w-1", map[string]any{"handle": "pid-1"}))
	require.NoError(t, log.Append("node_down", "w-1", nil))
	require.NoError(t, log.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var seen []eventlog.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec eventlog.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		seen = append(seen, rec)
	}
	require.Len(t, seen, 2)
	require.Equal(t, "node_up", seen[0].Kind)
	require.EqualValues(t, 1, seen[0].Seq)
	require.Equal(t, "node_down", seen[1].Kind)
	require.EqualValues(t, 2, seen[1].Seq)
}
