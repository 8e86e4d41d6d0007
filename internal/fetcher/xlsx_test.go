package fetcher

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestStreamXLSX_Basic(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Name", "Phone", "City"},
			{"Acme", "555-1234", "Mumbai"},
			{"", "", ""},
			{"Best Cafe", "", "Pune"},
		},
	})

	recCh, errCh := StreamXLSX(context.Background(), bytes.NewReader(data), XLSXOptions{})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]string{"name": "Acme", "phone": "555-1234", "city": "Mumbai"}, recs[0].Fields)
	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, "Best Cafe", recs[1].Fields["name"])
}

func TestStreamXLSX_HeaderRowOffset(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Exported leads"},
			{"Business Name", "Town"},
			{"Acme", "Pune"},
		},
	})

	recCh, errCh := StreamXLSX(context.Background(), bytes.NewReader(data), XLSXOptions{HeaderRow: 1})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Acme", recs[0].Fields["business_name"])
	assert.Equal(t, "Pune", recs[0].Fields["town"])
}

func TestStreamXLSX_SheetName(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"First":  {{"a"}, {"1"}},
		"Second": {{"name"}, {"Acme"}},
	})

	recCh, errCh := StreamXLSX(context.Background(), bytes.NewReader(data), XLSXOptions{SheetName: "Second"})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Acme", recs[0].Fields["name"])
}

func TestStreamXLSX_SheetNotFound(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{"Sheet1": {{"name"}}})

	recCh, errCh := StreamXLSX(context.Background(), bytes.NewReader(data), XLSXOptions{SheetName: "Missing"})
	_, err := collectRecords(t, recCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestStreamXLSX_SheetIndexOutOfRange(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{"Sheet1": {{"name"}}})

	recCh, errCh := StreamXLSX(context.Background(), bytes.NewReader(data), XLSXOptions{SheetIndex: 3})
	_, err := collectRecords(t, recCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestStreamXLSX_NotAWorkbook(t *testing.T) {
	recCh, errCh := StreamXLSX(context.Background(), strings.NewReader("name,city\n"), XLSXOptions{})
	_, err := collectRecords(t, recCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open workbook")
}
