package fx

import (
	"net/http"
	"ranked-bedwars/internal/service"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(
		Module,
		fx.Invoke(func(http.Handler, *service.Coordinator, *service.PlayerService) {}),
	))
}

func TestCoreGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(
		Core,
		fx.Invoke(func(*service.Coordinator, *service.GameService, *service.RatingTable, *service.Reconciler) {}),
	))
}
