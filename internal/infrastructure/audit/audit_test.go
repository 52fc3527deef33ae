package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/erp/catalogsync/internal/domain/integration"
)

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sampleBatch(flow integration.Flow, dryRun bool) integration.AuditBatch {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	return integration.AuditBatch{
		Flow:      flow,
		RequestID: "0123456789abcdef",
		DryRun:    dryRun,
		StartedAt: ts,
		Rows: []integration.AuditRow{
			{
				SKU:         "A1",
				QtyBefore:   intPtr(5),
				QtyAfter:    intPtr(3),
				PriceBefore: decPtr("9.99"),
				PriceAfter:  decPtr("8.5"),
				Action:      integration.AuditActionDryRun,
				Detail:      "quantity: 5 -> 3; price: 9.99 -> 8.50",
				DryRun:      dryRun,
				Timestamp:   ts,
			},
			{
				SKU:       "Z9",
				Action:    integration.AuditActionFailed,
				Reason:    integration.ReasonNotFound,
				DryRun:    dryRun,
				Timestamp: ts,
			},
		},
	}
}

func TestFileName(t *testing.T) {
	batch := sampleBatch(integration.FlowStock, true)
	assert.Equal(t, "stock_dryrun_20240305_140709_01234567.csv", FileName(batch, "csv"))

	batch.DryRun = false
	batch.RequestID = "ab"
	assert.Equal(t, "stock_real_20240305_140709_ab.xlsx", FileName(batch, "xlsx"))
}

func TestValues_ProductLayout(t *testing.T) {
	batch := sampleBatch(integration.FlowProducts, true)
	assert.Equal(t,
		[]string{"A1", "9.99", "8.50", "5", "3", "dryrun", "", "true", "2024-03-05T14:07:09Z"},
		Values(integration.FlowProducts, batch.Rows[0]))
	assert.Equal(t,
		[]string{"Z9", "", "", "", "", "failed", "not_found", "true", "2024-03-05T14:07:09Z"},
		Values(integration.FlowProducts, batch.Rows[1]))
}

func TestValues_StockLayoutFallsBackToReason(t *testing.T) {
	batch := sampleBatch(integration.FlowStock, false)
	values := Values(integration.FlowStock, batch.Rows[1])
	assert.Equal(t, "failed", values[5])
	assert.Equal(t, "not_found", values[6])
	assert.Equal(t, "false", values[7])
}

func TestCSVWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dryrun")
	path, err := CSVWriter{}.Write(dir, sampleBatch(integration.FlowStock, true))
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, stockColumns, records[0])
	assert.Equal(t, "quantity: 5 -> 3; price: 9.99 -> 8.50", records[1][6])
}

func TestXLSXWriter(t *testing.T) {
	path, err := XLSXWriter{}.Write(t.TempDir(), sampleBatch(integration.FlowProducts, true))
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", filepath.Ext(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, productColumns, rows[0])
	assert.Equal(t, "A1", rows[1][0])
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func TestArtifactSink_OnlyDryRunUnlessAlways(t *testing.T) {
	dir := t.TempDir()
	sink := NewArtifactSink(dir, FormatCSV, false)

	require.NoError(t, sink.Record(context.Background(), sampleBatch(integration.FlowStock, false)))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "real runs write nothing by default")

	require.NoError(t, sink.Record(context.Background(), sampleBatch(integration.FlowStock, true)))
	entries, _ = os.ReadDir(dir)
	assert.Len(t, entries, 1)

	alwaysDir := t.TempDir()
	always := NewArtifactSink(alwaysDir, FormatCSV, true)
	require.NoError(t, always.Record(context.Background(), sampleBatch(integration.FlowProducts, false)))
	entries, _ = os.ReadDir(alwaysDir)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "products_real_")
}

func TestArtifactSink_ConcurrentRecord(t *testing.T) {
	dir := t.TempDir()
	sink := NewArtifactSink(dir, FormatCSV, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch := sampleBatch(integration.FlowStock, true)
			batch.RequestID = fmt.Sprintf("req%05d", i)
			assert.NoError(t, sink.Record(context.Background(), batch))
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestArtifactSink_Uploads(t *testing.T) {
	up := new(mockUploader)
	up.On("Upload", mock.Anything, mock.AnythingOfType("string")).Return("audit/x.csv", nil).Once()

	sink := NewArtifactSink(t.TempDir(), FormatCSV, false).WithUploader(up)
	require.NoError(t, sink.Record(context.Background(), sampleBatch(integration.FlowStock, true)))
	up.AssertExpectations(t)
}

type funcSink func(ctx context.Context, batch integration.AuditBatch) error

func (f funcSink) Record(ctx context.Context, batch integration.AuditBatch) error {
	return f(ctx, batch)
}

func TestMultiSink_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	var delivered int

	m := NewMultiSink(
		funcSink(func(context.Context, integration.AuditBatch) error { return boom }),
		nil,
		funcSink(func(context.Context, integration.AuditBatch) error { delivered++; return nil }),
	)
	assert.Equal(t, 2, m.Len())

	err := m.Record(context.Background(), sampleBatch(integration.FlowStock, true))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, delivered)
}
