package pdfops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// newToolService resolves the real system toolset; tests using it skip
// when the required binary is absent.
func newToolService(t *testing.T) *Service {
	t.Helper()
	mgr, err := tempfs.NewManager(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)
	return NewService(mgr, tools.Resolve(u.ToolsConfig{}), u.TimeoutsConfig{DefaultSecs: 60})
}

func requireTool(t *testing.T, svc *Service, name string) {
	t.Helper()
	if !svc.tools.Has(name) {
		t.Skipf("%s not installed", name)
	}
}

func TestCompress_IdempotentAtSamePreset(t *testing.T) {
	svc := newToolService(t)
	requireTool(t, svc, tools.Ghostscript)
	ctx := context.Background()

	once, err := svc.Compress(ctx, buildPDF(t, 3), "medium")
	require.NoError(t, err)
	twice, err := svc.Compress(ctx, once, "medium")
	require.NoError(t, err)

	// Re-compressing must not grow the file: the smaller result is kept.
	assert.LessOrEqual(t, len(twice), len(once))
}

func TestRepair_ProducesReadablePDF(t *testing.T) {
	svc := newToolService(t)
	requireTool(t, svc, tools.QPDF)

	out, err := svc.Repair(context.Background(), buildPDF(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, out))
}

func TestPasswordRoundTrip(t *testing.T) {
	svc := newToolService(t)
	requireTool(t, svc, tools.QPDF)
	ctx := context.Background()

	in := buildPDF(t, 2)
	locked, err := svc.AddPassword(ctx, in, "secret")
	require.NoError(t, err)

	unlocked, err := svc.RemovePassword(ctx, locked, "secret")
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, unlocked), "page count must survive the round trip")
}
