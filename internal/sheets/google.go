// google.go - Google Sheets / Drive implementation of the API contract

package sheets

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// GoogleAPI implements API on the Sheets v4 and Drive v3 services using a
// service-account credentials file. Both services share one credential;
// Drive is needed for template copies and backups, Sheets for everything
// else.
type GoogleAPI struct {
	sheets *gsheets.Service
	drive  *drive.Service
}

// NewGoogleAPI builds the adapter from a service-account JSON file.
func NewGoogleAPI(ctx context.Context, credentialsPath string) (*GoogleAPI, error) {
	sheetsSvc, err := gsheets.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("Sheets APIの認証に失敗しました（service_account.jsonを確認してください）: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("Drive APIの認証に失敗しました: %w", err)
	}
	return &GoogleAPI{sheets: sheetsSvc, drive: driveSvc}, nil
}

func (g *GoogleAPI) BatchUpdate(ctx context.Context, spreadsheetID, sheetName string, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	data := make([]*gsheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheets.ValueRange{
			Range:  rangeRef(sheetName, u.Cell),
			Values: [][]interface{}{{u.Value}},
		})
	}

	req := &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	_, err := g.sheets.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("スプレッドシートへの一括書き込みに失敗: %w", err)
	}
	return nil
}

func (g *GoogleAPI) HeaderRow(ctx context.Context, spreadsheetID, sheetName string) ([]string, error) {
	resp, err := g.sheets.Spreadsheets.Values.Get(spreadsheetID, rangeRef(sheetName, "1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ヘッダー行の取得に失敗: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, v := range resp.Values[0] {
		headers = append(headers, fmt.Sprintf("%v", v))
	}
	return headers, nil
}

func (g *GoogleAPI) AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}

	_, err := g.sheets.Spreadsheets.Values.Append(spreadsheetID, rangeRef(sheetName, "A1"), &gsheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("行の追記に失敗: %w", err)
	}
	return nil
}

func (g *GoogleAPI) UpdateCell(ctx context.Context, spreadsheetID, sheetName, cell, value string) error {
	_, err := g.sheets.Spreadsheets.Values.Update(spreadsheetID, rangeRef(sheetName, cell), &gsheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("セル %s の書き込みに失敗: %w", cell, err)
	}
	return nil
}

func (g *GoogleAPI) CopyTemplate(ctx context.Context, templateID, newName, folderID string) (*CopyResult, error) {
	file := &drive.File{Name: newName}
	if folderID != "" {
		file.Parents = []string{folderID}
	}

	copied, err := g.drive.Files.Copy(templateID, file).
		SupportsAllDrives(true).Fields("id", "webViewLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("テンプレートのコピーに失敗: %w", err)
	}

	url := copied.WebViewLink
	if url == "" {
		url = g.SpreadsheetURL(copied.Id)
	}
	return &CopyResult{ID: copied.Id, URL: url}, nil
}

func (g *GoogleAPI) SpreadsheetURL(spreadsheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + spreadsheetID
}

func (g *GoogleAPI) UploadBackup(ctx context.Context, r io.Reader, filename, folderID, mimeType string) (*BackupResult, error) {
	file := &drive.File{Name: filename}
	if folderID != "" {
		file.Parents = []string{folderID}
	}

	created, err := g.drive.Files.Create(file).
		Media(r, googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).Fields("id", "webViewLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("バックアップのアップロードに失敗: %w", err)
	}
	return &BackupResult{ID: created.Id, WebViewLink: created.WebViewLink}, nil
}

// rangeRef builds an A1-notation range, quoting the sheet name when given.
func rangeRef(sheetName, ref string) string {
	if sheetName == "" {
		return ref
	}
	return fmt.Sprintf("'%s'!%s", sheetName, ref)
}
