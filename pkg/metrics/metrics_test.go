package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/parser"
)

func TestPoolObserver(t *testing.T) {
	m := New()
	m.TaskQueued()
	m.TaskQueued()
	m.TaskStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksInFlight))

	m.TaskFinished(3 * time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tasksInFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.taskDuration))
}

func TestFileCounters(t *testing.T) {
	m := New()
	l, err := lexer.New("a.c", strings.NewReader("int f() {} int g() {}"), config.NewConfig()).Lex()
	require.NoError(t, err)
	m.FileLexed(l)

	p, err := parser.Parse(l, 0, config.NewConfig())
	require.NoError(t, err)
	m.FileParsed(p)
	m.FileFailed("lex", "open_error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("lex", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("parse", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("lex", "open_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.functions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokens.WithLabelValues("Keyword")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokens.WithLabelValues("EOF")))
	assert.Equal(t, float64(l.BytesRead), testutil.ToFloat64(m.bytesRead))
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.TaskQueued()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cppillr_pool_tasks_queued_total 1")
}
