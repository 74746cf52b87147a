package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogAppend(t *testing.T) {
	dir := t.TempDir()

	log, err := NewRunLog(dir)
	require.NoError(t, err)
	require.NotEmpty(t, log.RunID)
	assert.True(t, strings.HasPrefix(filepath.Base(log.Path), "run_"))

	require.NoError(t, log.Append(Event{
		Kind:     KindApproval,
		Document: "0110_2024_budget",
		Section:  "0110 Senate",
		Message:  "section committed",
	}))
	require.NoError(t, log.Append(Event{
		Kind:    KindOverwrite,
		Message: "allocation amount replaced",
		Detail:  map[string]any{"fund": "0001", "fiscal_year": 2023},
	}))
	require.NoError(t, log.Close())

	file, err := os.Open(log.Path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	assert.Equal(t, KindApproval, events[0].Kind)
	assert.Equal(t, "0110_2024_budget", events[0].Document)
	assert.False(t, events[0].Time.IsZero(), "timestamp is filled in on append")
	assert.Equal(t, KindOverwrite, events[1].Kind)
	assert.Equal(t, "0001", events[1].Detail["fund"])
}

func TestRunLogDistinctPerRun(t *testing.T) {
	dir := t.TempDir()

	first, err := NewRunLog(dir)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	second, err := NewRunLog(dir)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	assert.NotEqual(t, first.Path, second.Path)
	assert.NotEqual(t, first.RunID, second.RunID)
}
