// writer.go - Deterministic transfer of reconciled records into sheets

package sheets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/jsonrepair"
	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
)

// NarrativeCell is where the management-meeting minutes land.
const NarrativeCell = "A1"

// WriteMapped transfers a reconciled record into its mapped cells. Fields
// walk in schema order; a field absent from the record is skipped, and the
// blank sentinel becomes an empty cell. All updates go out in exactly one
// remote call. This is a hard quota-efficiency invariant: record size must
// never change the number of write calls. No retries; a remote failure
// propagates as-is.
func WriteMapped(ctx context.Context, api API, spreadsheetID, sheetName string, m *mapping.Mapping, record map[string]interface{}) (int, error) {
	updates := make([]CellUpdate, 0, m.Len())
	for _, entry := range m.Entries() {
		v, ok := record[entry.Name]
		if !ok {
			continue
		}
		value := jsonrepair.Stringify(v)
		if value == mapping.BlankSentinel {
			value = ""
		}
		updates = append(updates, CellUpdate{Cell: entry.Cell, Value: value})
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := api.BatchUpdate(ctx, spreadsheetID, sheetName, updates); err != nil {
		return 0, err
	}
	return len(updates), nil
}

// AppendMeetingRow writes one meeting record as a new row, ordering values
// by the sheet's header row. A record key matches a header when either
// contains the other; matching is case-sensitive, headers and keys are
// both Japanese fixed vocabulary. When several keys match the same header,
// the exact match wins, then the first match in sorted key order, so a
// given record always produces the same row. Unmatched headers get empty
// cells.
func AppendMeetingRow(ctx context.Context, api API, spreadsheetID, sheetName string, record map[string]interface{}) (int, error) {
	headers, err := api.HeaderRow(ctx, spreadsheetID, sheetName)
	if err != nil {
		return 0, err
	}
	if len(headers) == 0 {
		return 0, fmt.Errorf("スプレッドシートの1行目にヘッダーがありません")
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	row := make([]string, len(headers))
	for i, header := range headers {
		if value, ok := record[header]; ok {
			row[i] = jsonrepair.Stringify(value)
			continue
		}
		for _, key := range keys {
			if strings.Contains(header, key) || strings.Contains(key, header) {
				row[i] = jsonrepair.Stringify(record[key])
				break
			}
		}
	}

	if err := api.AppendRow(ctx, spreadsheetID, sheetName, row); err != nil {
		return 0, err
	}
	return 1, nil
}

// WriteNarrativeCell puts the whole minutes text into the narrative cell.
func WriteNarrativeCell(ctx context.Context, api API, spreadsheetID, sheetName, text string) (int, error) {
	if err := api.UpdateCell(ctx, spreadsheetID, sheetName, NarrativeCell, text); err != nil {
		return 0, err
	}
	return 1, nil
}

// CopyFromTemplate creates the write target from the template spreadsheet
// so the template itself stays untouched. The copy is named
// 利用者名_YYYYMMDD_シート種別, taking the user name from the record
// (利用者情報_氏名_漢字 first, then 氏名, then a placeholder).
func CopyFromTemplate(ctx context.Context, rc *common.RunContext, api API, templateID, folderID, sheetType string, record map[string]interface{}) (*CopyResult, error) {
	userName := recordUserName(record)
	newName := fmt.Sprintf("%s_%s_%s", userName, time.Now().Format("20060102"), sheetType)

	rc.StartStep("copy_template")
	result, err := api.CopyTemplate(ctx, templateID, newName, folderID)
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return nil, err
	}
	rc.EndStep(common.StepStatusSuccess, nil, nil)
	rc.LogInfo("📋 新規シートを作成しました: %s", newName)
	return result, nil
}

func recordUserName(record map[string]interface{}) string {
	for _, key := range []string{"利用者情報_氏名_漢字", "氏名", "利用者名"} {
		if v, ok := record[key]; ok {
			name := strings.NewReplacer(" ", "", "　", "").Replace(jsonrepair.Stringify(v))
			if name != "" && name != mapping.BlankSentinel {
				return name
			}
		}
	}
	return "利用者未定"
}
