package engconfig_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-vm/classjit/src/engconfig"
)

func TestDefaultIsPermissive(t *testing.T) {
	cfg := engconfig.Default()
	require.Greater(t, cfg.MaxClassFileBytes, 0)
	require.Greater(t, cfg.MaxBasicBlocksPerMethod, 0)
	require.Equal(t, engconfig.BackendStackVM, cfg.Backend)
}

func TestLoadOverridesSelectedFields(t *testing.T) {
	doc := `
backend = "llvmir"
max_basic_blocks_per_method = 64
`
	cfg, err := engconfig.Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, engconfig.BackendLLVMIR, cfg.Backend)
	require.Equal(t, 64, cfg.MaxBasicBlocksPerMethod)
	require.Equal(t, engconfig.Default().MaxClassFileBytes, cfg.MaxClassFileBytes)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := engconfig.Load(strings.NewReader(`backend = "interpreter"`))
	require.Error(t, err)
}
