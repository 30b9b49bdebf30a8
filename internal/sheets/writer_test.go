package sheets

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
)

type fakeAPI struct {
	batchCalls   int
	batchUpdates []CellUpdate
	batchErr     error

	headers   []string
	headerErr error

	appended [][]string

	updatedCells map[string]string

	copies  []string
	copyErr error
}

func (f *fakeAPI) BatchUpdate(ctx context.Context, id, sheet string, updates []CellUpdate) error {
	f.batchCalls++
	f.batchUpdates = append(f.batchUpdates, updates...)
	return f.batchErr
}

func (f *fakeAPI) HeaderRow(ctx context.Context, id, sheet string) ([]string, error) {
	return f.headers, f.headerErr
}

func (f *fakeAPI) AppendRow(ctx context.Context, id, sheet string, values []string) error {
	f.appended = append(f.appended, values)
	return nil
}

func (f *fakeAPI) UpdateCell(ctx context.Context, id, sheet, cell, value string) error {
	if f.updatedCells == nil {
		f.updatedCells = map[string]string{}
	}
	f.updatedCells[cell] = value
	return nil
}

func (f *fakeAPI) CopyTemplate(ctx context.Context, templateID, newName, folderID string) (*CopyResult, error) {
	f.copies = append(f.copies, newName)
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	return &CopyResult{ID: "copy-1", URL: "https://example/copy-1"}, nil
}

func (f *fakeAPI) SpreadsheetURL(id string) string { return "https://example/" + id }

func (f *fakeAPI) UploadBackup(ctx context.Context, r io.Reader, filename, folderID, mimeType string) (*BackupResult, error) {
	return &BackupResult{ID: "bk-1", WebViewLink: "https://example/bk-1"}, nil
}

const writerDefinition = `氏名,B2
住所,B3
要介護度,B4,要介護1|要介護2|要介護3`

func TestWriteMappedScenario(t *testing.T) {
	m, err := mapping.Parse(writerDefinition)
	require.NoError(t, err)

	api := &fakeAPI{}
	record := map[string]interface{}{
		"氏名": "田中太郎", "住所": "那覇市", "要介護度": "要介護2",
	}

	count, err := WriteMapped(t.Context(), api, "sheet-id", "シート1", m, record)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	// one remote call regardless of record size
	assert.Equal(t, 1, api.batchCalls)
	assert.Equal(t, []CellUpdate{
		{Cell: "B2", Value: "田中太郎"},
		{Cell: "B3", Value: "那覇市"},
		{Cell: "B4", Value: "要介護2"},
	}, api.batchUpdates)
}

func TestWriteMappedBlankSentinel(t *testing.T) {
	m, err := mapping.Parse(writerDefinition)
	require.NoError(t, err)

	api := &fakeAPI{}
	record := map[string]interface{}{"氏名": "田中太郎", "住所": mapping.BlankSentinel}

	count, err := WriteMapped(t.Context(), api, "sheet-id", "", m, record)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []CellUpdate{
		{Cell: "B2", Value: "田中太郎"},
		{Cell: "B3", Value: ""},
	}, api.batchUpdates)
}

func TestWriteMappedEmptyRecordIssuesNoCall(t *testing.T) {
	m, err := mapping.Parse(writerDefinition)
	require.NoError(t, err)

	api := &fakeAPI{}
	count, err := WriteMapped(t.Context(), api, "sheet-id", "", m, map[string]interface{}{})

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, api.batchCalls)
}

func TestWriteMappedPropagatesRemoteError(t *testing.T) {
	m, err := mapping.Parse(writerDefinition)
	require.NoError(t, err)

	api := &fakeAPI{batchErr: errors.New("quota exceeded")}
	_, err = WriteMapped(t.Context(), api, "sheet-id", "", m, map[string]interface{}{"氏名": "x"})

	require.Error(t, err)
	assert.Equal(t, 1, api.batchCalls)
}

func TestAppendMeetingRowSubstringMatch(t *testing.T) {
	api := &fakeAPI{headers: []string{"開催日", "会議の結論", "備考"}}
	record := map[string]interface{}{
		"開催日": "2025年4月1日",
		"結論":  "1. 継続。",
	}

	count, err := AppendMeetingRow(t.Context(), api, "sheet-id", "", record)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, api.appended, 1)
	// 結論 ⊂ 会議の結論, unmatched 備考 stays empty
	assert.Equal(t, []string{"2025年4月1日", "1. 継続。", ""}, api.appended[0])
}

func TestAppendMeetingRowAmbiguousHeaderIsDeterministic(t *testing.T) {
	record := map[string]interface{}{
		"検討した項目": "B",
		"検討内容":   "A",
	}

	// 検討 matches both keys; the sorted-first key must win every time.
	for i := 0; i < 50; i++ {
		api := &fakeAPI{headers: []string{"検討"}}
		_, err := AppendMeetingRow(t.Context(), api, "sheet-id", "", record)

		require.NoError(t, err)
		require.Len(t, api.appended, 1)
		assert.Equal(t, []string{"B"}, api.appended[0])
	}
}

func TestAppendMeetingRowExactMatchWins(t *testing.T) {
	api := &fakeAPI{headers: []string{"検討内容"}}
	record := map[string]interface{}{
		"検討した項目": "B",
		"検討内容":   "A",
	}

	_, err := AppendMeetingRow(t.Context(), api, "sheet-id", "", record)

	require.NoError(t, err)
	require.Len(t, api.appended, 1)
	assert.Equal(t, []string{"A"}, api.appended[0])
}

func TestAppendMeetingRowNoHeaders(t *testing.T) {
	api := &fakeAPI{}
	_, err := AppendMeetingRow(t.Context(), api, "sheet-id", "", map[string]interface{}{"開催日": "x"})

	require.Error(t, err)
	assert.Empty(t, api.appended)
}

func TestWriteNarrativeCell(t *testing.T) {
	api := &fakeAPI{}
	count, err := WriteNarrativeCell(t.Context(), api, "sheet-id", "", "■利用者情報共有...")

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "■利用者情報共有...", api.updatedCells[NarrativeCell])
}

func TestCopyFromTemplateNaming(t *testing.T) {
	api := &fakeAPI{}
	rc := common.NewRunContext("アセスメントシート")
	record := map[string]interface{}{"氏名": "田中 太郎"}

	result, err := CopyFromTemplate(t.Context(), rc, api, "tmpl", "folder", "アセスメントシート", record)

	require.NoError(t, err)
	assert.Equal(t, "copy-1", result.ID)
	require.Len(t, api.copies, 1)
	expected := "田中太郎_" + time.Now().Format("20060102") + "_アセスメントシート"
	assert.Equal(t, expected, api.copies[0])
}

func TestCopyFromTemplateFallbackName(t *testing.T) {
	api := &fakeAPI{}
	rc := common.NewRunContext("アセスメントシート")

	_, err := CopyFromTemplate(t.Context(), rc, api, "tmpl", "", "アセスメントシート", map[string]interface{}{})

	require.NoError(t, err)
	require.Len(t, api.copies, 1)
	assert.Contains(t, api.copies[0], "利用者未定_")
}
