package paper

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/signal"
)

func sampleFill() execution.Fill {
	return execution.Fill{
		OrderID: "ord-1",
		Symbol:  "VCB",
		Side:    signal.SideBuy,
		Qty:     100,
		Price:   95_000,
		Ts:      time.Now(),
	}
}

func TestLedgerRecordSnapshotReset(t *testing.T) {
	ledger := NewLedger(4)
	ledger.Record(sampleFill())
	ledger.Record(sampleFill())

	fills := ledger.Snapshot()
	require.Len(t, fills, 2)

	fills[0].Qty = -1
	assert.InDelta(t, 100, ledger.Snapshot()[0].Qty, 1e-9, "snapshot must be a copy")

	ledger.Reset()
	assert.Empty(t, ledger.Snapshot())
}

func TestLedgerTracksPerSymbolStats(t *testing.T) {
	ledger := NewLedger(0)
	ledger.Record(execution.Fill{OrderID: "o1", Symbol: "VCB", Side: signal.SideBuy, Qty: 100, Price: 95_000})
	ledger.Record(execution.Fill{OrderID: "o2", Symbol: "VCB", Side: signal.SideBuy, Qty: 100, Price: 96_000})
	ledger.Record(execution.Fill{OrderID: "o3", Symbol: "VCB", Side: signal.SideSell, Qty: 200, Price: 97_000})
	ledger.Record(execution.Fill{OrderID: "o4", Symbol: "FPT", Side: signal.SideBuy, Qty: 300, Price: 120_000})

	stats := ledger.Stats("VCB")
	assert.Equal(t, 3, stats.Fills)
	assert.InDelta(t, 200, stats.BoughtQty, 1e-9)
	assert.InDelta(t, 200, stats.SoldQty, 1e-9)
	assert.InDelta(t, 95_500, stats.AvgBuyPrice(), 1e-9)
	assert.InDelta(t, 97_000, stats.AvgSellPrice(), 1e-9)

	require.Len(t, ledger.ForSymbol("FPT"), 1)
	assert.Equal(t, "o4", ledger.ForSymbol("FPT")[0].OrderID)
	assert.Equal(t, TradeStats{}, ledger.Stats("HPG"))
}

func TestLedgerRetentionKeepsNewestFillsButFullStats(t *testing.T) {
	ledger := NewLedger(2)
	for i, px := range []float64{95_000, 95_100, 95_200, 95_300} {
		ledger.Record(execution.Fill{
			OrderID: string(rune('a' + i)),
			Symbol:  "VCB",
			Side:    signal.SideBuy,
			Qty:     100,
			Price:   px,
		})
	}

	fills := ledger.Snapshot()
	require.Len(t, fills, 2)
	assert.InDelta(t, 95_200, fills[0].Price, 1e-9)
	assert.InDelta(t, 95_300, fills[1].Price, 1e-9)

	// aggregates still cover the fills the bound dropped
	stats := ledger.Stats("VCB")
	assert.Equal(t, 4, stats.Fills)
	assert.InDelta(t, 400, stats.BoughtQty, 1e-9)
}

func TestJSONLRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fills", "paper.jsonl")
	recorder, err := NewJSONLRecorder(path)
	require.NoError(t, err)

	recorder.Record(sampleFill())
	recorder.Record(sampleFill())
	require.NoError(t, recorder.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestJSONLRecorderKeepsFirstWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.jsonl")
	recorder, err := NewJSONLRecorder(path)
	require.NoError(t, err)

	// closing the handle out from under the writer forces the flush to fail
	require.NoError(t, recorder.file.Close())
	recorder.Record(sampleFill())
	assert.Error(t, recorder.Err())

	// later records are no-ops and Close surfaces the original error
	recorder.Record(sampleFill())
	assert.ErrorIs(t, recorder.Close(), recorder.Err())
}
