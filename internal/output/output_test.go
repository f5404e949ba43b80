package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("created %s", "ENG-1")
	assert.Contains(t, out.String(), "created ENG-1")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestRunStatusColor(t *testing.T) {
	assert.NotEmpty(t, RunStatusColor("running"))
	assert.NotEmpty(t, RunStatusColor("completed"))
	assert.NotEmpty(t, RunStatusColor("failed"))
	assert.Equal(t, "unknown", RunStatusColor("unknown"))
}

func TestPriorityLabel(t *testing.T) {
	assert.Contains(t, PriorityLabel(1), "urgent")
	assert.Contains(t, PriorityLabel(2), "high")
	assert.Contains(t, PriorityLabel(3), "medium")
	assert.Contains(t, PriorityLabel(4), "low")
	assert.Equal(t, "none", PriorityLabel(0))
	assert.Equal(t, "none", PriorityLabel(9))
}

func TestStateColor(t *testing.T) {
	assert.NotEmpty(t, StateColor("Todo", "unstarted"))
	assert.NotEmpty(t, StateColor("In Progress", "started"))
	assert.NotEmpty(t, StateColor("Done", "completed"))
	assert.NotEmpty(t, StateColor("Canceled", "canceled"))
	assert.Equal(t, "Triage", StateColor("Triage", "triage"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Identifier", "Title"})
	require.NotNil(t, table)

	table.Append([]string{"ENG-1", "Fix login bug"})
	table.Append([]string{"ENG-2", "Add dark mode"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "ENG-1"),
		"table output should contain issue identifiers")
	assert.True(t, strings.Contains(result, "ENG-2"),
		"table output should contain issue identifiers")
}
