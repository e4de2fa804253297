package extract

import (
	"testing"

	"portalbridge/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultOptions(), telemetry.NopAPI{})
}

const fragmentListPage = `<html><body>
<script>self.__next_f.push([1,"5:[[\"$\",\"$L1\",null,{\"news\":[{\"id\":\"7\",\"title\":\"A\",\"description\":\"see 9:T5,\"}]}]]"])</script>
<script>self.__next_f.push([1,"9:Hello"])</script>
</body></html>`

// a page that satisfies both the fragment strategy and the DOM strategy,
// with recognizably different data in each, so short-circuiting is
// observable.
const dualStrategyPage = fragmentListPage + `
<div role="presentation">toolbar</div>
<div role="presentation">
  <div role="row" data-id="999">
    <div role="cell" data-field="title"><a href="/news/999">WRONG</a></div>
  </div>
</div>`

func TestRecordsIdempotent(t *testing.T) {
	engine := newTestEngine()

	first, firstDiag := engine.Records(fragmentListPage)
	second, secondDiag := engine.Records(fragmentListPage)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, firstDiag, secondDiag)
}

func TestCascadeShortCircuit(t *testing.T) {
	engine := newTestEngine()

	records, diag := engine.Records(dualStrategyPage)

	require.Equal(t, "streamed-fragments", diag.StrategyUsed)
	require.Len(t, records, 1)
	require.Equal(t, "A", records[0]["title"])

	// sanity check: the DOM strategy alone would have produced the
	// wrong record, so it must not have run
	domOnly := domStrategy{cfg: DefaultOptions().Dom, tel: telemetry.NopAPI{}}
	wrong, ok := domOnly.attempt(dualStrategyPage)
	require.True(t, ok)
	require.Equal(t, "WRONG", wrong[0]["title"])
}

func TestGracefulDegradation(t *testing.T) {
	engine := newTestEngine()

	records, diag := engine.Records("<html><body><p>maintenance page</p></body></html>")

	require.NotNil(t, records)
	require.Empty(t, records)
	require.Empty(t, diag.StrategyUsed)
	require.False(t, diag.HasStreamFragments)
	require.False(t, diag.HasPageState)
	require.False(t, diag.HasDataGrid)
}

func TestDetailReferenceMarkerResolution(t *testing.T) {
	engine := newTestEngine()

	record, found, diag := engine.Detail(fragmentListPage)

	require.True(t, found)
	require.Equal(t, "streamed-fragments", diag.StrategyUsed)
	require.Equal(t, "7", record["id"])
	require.Equal(t, "Hello", record["content"])
}

func TestDetailNotFound(t *testing.T) {
	engine := newTestEngine()

	_, found, _ := engine.Detail("<html><body>nothing</body></html>")
	require.False(t, found)
}

func TestDiagnosticsMarkers(t *testing.T) {
	engine := newTestEngine()

	_, diag := engine.Records(fragmentListPage)
	require.True(t, diag.HasStreamFragments)
	require.True(t, diag.HasScriptArrays)
	require.Equal(t, len(fragmentListPage), diag.PayloadBytes)
}
