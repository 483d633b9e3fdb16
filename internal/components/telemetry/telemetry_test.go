package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := NewRecorder()
	scoped := NewScopedAPI("registry", recorder)

	err := errors.New("connection refused")
	scoped.ReportBroken("client.fetch", err)
	scoped.ReportWarning("client.vehicle-data", 502)
	scoped.ReportInfo("client.config")
	scoped.ReportDebug("opening session", "vin")
	scoped.ReportCount("client.close-session-failed", 3)

	nested := NewScopedAPI("outer", scoped)
	nested.ReportInfo("inner")

	require.Equal(t, []Report{
		{Level: LevelBroken, Id: "registry: client.fetch", Params: []any{err}},
		{Level: LevelWarning, Id: "registry: client.vehicle-data", Params: []any{502}},
		{Level: LevelInfo, Id: "registry: client.config"},
		{Level: LevelDebug, Id: "registry: opening session", Params: []any{"vin"}},
		{Level: LevelCount, Id: "registry: client.close-session-failed", Count: 3},
		{Level: LevelInfo, Id: "registry: outer: inner"},
	}, recorder.Reports())

	require.Len(t, recorder.Filter(LevelInfo), 2)
	require.Empty(t, NewRecorder().Filter(LevelBroken))
}

func TestSlogAPIDoesNotPanic(t *testing.T) {
	var tel API = SlogAPI{}
	require.NotPanics(t, func() {
		tel.ReportBroken("id", errors.New("err"), 1)
		tel.ReportWarning("id")
		tel.ReportInfo("id", "a", "b")
		tel.ReportDebug("msg")
		tel.ReportCount("id", 1)
	})
}
