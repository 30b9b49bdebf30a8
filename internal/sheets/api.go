// api.go - Spreadsheet and file-storage collaborator contract

package sheets

import (
	"context"
	"io"
)

// CellUpdate is one {range, values} pair in a batch write.
type CellUpdate struct {
	Cell  string
	Value string
}

// CopyResult identifies a spreadsheet created from a template.
type CopyResult struct {
	ID  string
	URL string
}

// BackupResult identifies a file uploaded to backup storage.
type BackupResult struct {
	ID          string
	WebViewLink string
}

// API is the remote spreadsheet collaborator. The Google implementation
// lives in google.go; tests substitute fakes.
type API interface {
	// BatchUpdate writes all cell updates to the named sheet in one
	// remote call.
	BatchUpdate(ctx context.Context, spreadsheetID, sheetName string, updates []CellUpdate) error

	// HeaderRow returns the first row of the named sheet, in order.
	HeaderRow(ctx context.Context, spreadsheetID, sheetName string) ([]string, error)

	// AppendRow appends one row after the last non-empty row.
	AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error

	// UpdateCell writes a single cell.
	UpdateCell(ctx context.Context, spreadsheetID, sheetName, cell, value string) error

	// CopyTemplate copies a template spreadsheet into a folder under a
	// new name.
	CopyTemplate(ctx context.Context, templateID, newName, folderID string) (*CopyResult, error)

	// SpreadsheetURL resolves the web URL of a spreadsheet.
	SpreadsheetURL(spreadsheetID string) string

	// UploadBackup stores a source file in the backup folder.
	UploadBackup(ctx context.Context, r io.Reader, filename, folderID, mimeType string) (*BackupResult, error)
}
