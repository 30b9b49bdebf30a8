package ai

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSections(names ...string) []mapping.Section {
	sections := make([]mapping.Section, 0, len(names))
	for _, n := range names {
		sections = append(sections, mapping.Section{Name: n, Prompt: n + "を抽出してください"})
	}
	return sections
}

func TestExtractMergesSections(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: `{"氏名": "田中太郎"}`},
			{Text: `{"住所": "那覇市"}`},
		},
	}
	rc := common.NewRunContext("テスト")
	files := []SourceFile{{Name: "a.txt", Path: writeTempFile(t, "a.txt", "dummy")}}

	record, err := NewExtractor(gw).Extract(t.Context(), rc, files, testSections("基本情報", "住所情報"))

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"氏名": "田中太郎", "住所": "那覇市"}, record)
	assert.Equal(t, []string{"files/fake-0"}, gw.deleted)
}

// Two of five sections succeed, two are blocked, one comes back
// unparseable even after repair. The record must hold exactly the two
// successful sections' keys and the run is not an error.
func TestExtractPartialSuccess(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: `{"氏名": "田中太郎"}`},
			{Blocked: true, BlockReason: "PROHIBITED_CONTENT"},
			{Text: `{"住所": "那覇市"}`},
			{Blocked: true, BlockReason: "OTHER"},
			{Text: `this is not json at all {{{`},
		},
	}
	rc := common.NewRunContext("テスト")
	files := []SourceFile{{Name: "a.txt", Path: writeTempFile(t, "a.txt", "dummy")}}

	record, err := NewExtractor(gw).Extract(t.Context(), rc, files,
		testSections("s1", "s2", "s3", "s4", "s5"))

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"氏名": "田中太郎", "住所": "那覇市"}, record)
	assert.Len(t, rc.Warnings, 3)
	assert.Equal(t, []string{"files/fake-0"}, gw.deleted)
}

func TestExtractTruncatedSectionWarnsAndRepairs(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: `{"氏名": "田中太郎", "住所": "那覇市`, Truncated: true},
		},
	}
	rc := common.NewRunContext("テスト")
	files := []SourceFile{{Name: "a.txt", Path: writeTempFile(t, "a.txt", "dummy")}}

	record, err := NewExtractor(gw).Extract(t.Context(), rc, files, testSections("s1"))

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"氏名": "田中太郎", "住所": "那覇市"}, record)
	require.Len(t, rc.Warnings, 1)
	assert.Contains(t, rc.Warnings[0], "途切れました")
}

func TestExtractAllUploadsFail(t *testing.T) {
	gw := &fakeGateway{
		uploadErrs: []error{errors.New("boom"), errors.New("boom")},
	}
	rc := common.NewRunContext("テスト")
	dir := t.TempDir()
	files := []SourceFile{
		{Name: "a.txt", Path: filepath.Join(dir, "a.txt")},
		{Name: "b.txt", Path: filepath.Join(dir, "b.txt")},
	}
	require.NoError(t, os.WriteFile(files[0].Path, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(files[1].Path, []byte("y"), 0o644))

	record, err := NewExtractor(gw).Extract(t.Context(), rc, files, testSections("s1"))

	require.Error(t, err)
	assert.Nil(t, record)
	assert.Empty(t, gw.generated)
}

// A file whose server-side ingestion fails is excluded from prompts but
// still deleted with the rest.
func TestExtractSkipsFailedIngestion(t *testing.T) {
	gw := &fakeGateway{
		waitErrs: []error{nil, errors.New("processing failed")},
		results:  []*Result{{Text: `{"氏名": "田中太郎"}`}},
	}
	rc := common.NewRunContext("テスト")
	files := []SourceFile{
		{Name: "a.txt", Path: writeTempFile(t, "a.txt", "x")},
		{Name: "b.txt", Path: writeTempFile(t, "b.txt", "y")},
	}

	record, err := NewExtractor(gw).Extract(t.Context(), rc, files, testSections("s1"))

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"氏名": "田中太郎"}, record)
	require.Len(t, gw.generated, 1)
	assert.Equal(t, 1, fileParts(gw.generated[0]))
	assert.ElementsMatch(t, []string{"files/fake-0", "files/fake-1"}, gw.deleted)
}

func TestExtractGenerateErrorSkipsSection(t *testing.T) {
	gw := &fakeGateway{
		genErrs: []error{errors.New("exhausted retries")},
		results: []*Result{nil, {Text: `{"住所": "那覇市"}`}},
	}
	rc := common.NewRunContext("テスト")
	files := []SourceFile{{Name: "a.txt", Path: writeTempFile(t, "a.txt", "x")}}

	record, err := NewExtractor(gw).Extract(t.Context(), rc, files, testSections("s1", "s2"))

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"住所": "那覇市"}, record)
}
