package platform_test

import (
	"context"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/platform"
	"ranked-bedwars/internal/platform/platformtest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_PrefersWorkerForEdits(t *testing.T) {
	primary := platformtest.NewRecorder()
	worker := platformtest.NewRecorder()
	f := platform.NewFallback(primary, worker, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, f.AddRoles(ctx, "g", "u", []string{"r"}, "reason"))
	require.NoError(t, f.SetNickname(ctx, "g", "u", "[10] Steve", "reason"))
	require.NoError(t, f.Send(ctx, "c", platform.Message{Content: "hi"}))

	assert.Len(t, worker.CallsFor("add_roles"), 1)
	assert.Len(t, worker.CallsFor("set_nickname"), 1)
	assert.Empty(t, primary.CallsFor("add_roles"))
	assert.Len(t, primary.Messages("c"), 1)
	assert.Empty(t, worker.Messages("c"))
}

func TestFallback_FallsBackOnWorkerFailure(t *testing.T) {
	primary := platformtest.NewRecorder()
	worker := platformtest.NewRecorder()
	worker.Fail["remove_roles"] = domain.ErrPlatformPermission
	f := platform.NewFallback(primary, worker, zerolog.Nop())

	require.NoError(t, f.RemoveRoles(context.Background(), "g", "u", []string{"r"}, "reason"))

	assert.Len(t, worker.CallsFor("remove_roles"), 1)
	assert.Len(t, primary.CallsFor("remove_roles"), 1)
}

func TestFallback_WithoutWorker(t *testing.T) {
	primary := platformtest.NewRecorder()
	f := platform.NewFallback(primary, nil, zerolog.Nop())

	require.NoError(t, f.SetNickname(context.Background(), "g", "u", "", "reset"))
	assert.Len(t, primary.CallsFor("set_nickname"), 1)
}

func TestFallback_ReturnsPrimaryError(t *testing.T) {
	primary := platformtest.NewRecorder()
	primary.Fail["set_nickname"] = domain.ErrPlatformTimeout
	worker := platformtest.NewRecorder()
	worker.Fail["set_nickname"] = domain.ErrPlatformPermission
	f := platform.NewFallback(primary, worker, zerolog.Nop())

	err := f.SetNickname(context.Background(), "g", "u", "x", "reason")
	assert.ErrorIs(t, err, domain.ErrPlatformTimeout)
}
