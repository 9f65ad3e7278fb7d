package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// The service tests build their dependencies by hand, so a missing
// fx provider only ever surfaces at startup. Validate the exact
// production composition here instead.
func TestAppCompositionResolves(t *testing.T) {
	require.NoError(t, fx.ValidateApp(appOptions()...))
}
