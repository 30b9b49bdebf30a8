// run.go - End-to-end run orchestration

package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kaigodx/care_sheet_gemini/configs"
	"github.com/kaigodx/care_sheet_gemini/internal/ai"
	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
	"github.com/kaigodx/care_sheet_gemini/internal/processor"
	"github.com/kaigodx/care_sheet_gemini/internal/sheets"
	"github.com/kaigodx/care_sheet_gemini/internal/storage"
)

// Runner wires the model gateway and the spreadsheet collaborator into
// complete runs. Stages execute strictly sequentially; the model service
// is never called concurrently within a run.
type Runner struct {
	Gateway ai.Gateway
	Sheets  sheets.API
}

// DocumentRequest describes one document-processing run.
type DocumentRequest struct {
	SheetType          string
	Files              []ai.SourceFile
	MappingText        string // overrides the definition file when set
	SpreadsheetID      string // template when protection is on, target otherwise
	SheetName          string
	TemplateProtection bool
	BackupSources      bool
}

// AudioRequest describes one meeting run, from a recording or from an
// already-transcribed text.
type AudioRequest struct {
	Kind               ai.MeetingKind
	AudioPath          string // recording on local disk; ignored when Transcript is set
	AudioName          string
	Transcript         string // pre-transcribed meeting text
	SpreadsheetID      string
	SheetName          string
	TemplateProtection bool
}

// RunResult is the per-run exit surface handed to the presentation layer.
// Raw and Reconciled are included for display and debugging.
type RunResult struct {
	RunID      string                 `json:"run_id"`
	Success    bool                   `json:"success"`
	WriteCount int                    `json:"write_count"`
	TargetURL  string                 `json:"target_url,omitempty"`
	Raw        map[string]interface{} `json:"raw_record,omitempty"`
	Reconciled map[string]interface{} `json:"reconciled_record,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	Summary    map[string]interface{} `json:"summary,omitempty"`
}

// RunDocument executes extract → reconcile → write for scanned documents.
// Unit-local failures (a section, a batch) degrade to warnings and partial
// data; run-level failures abort the remaining stages.
func (r *Runner) RunDocument(ctx context.Context, req DocumentRequest) (*RunResult, error) {
	rc := common.NewRunContext(req.SheetType)
	start := time.Now()

	m, err := r.loadMapping(req.MappingText)
	if err != nil {
		return r.fail(rc, "document", req.SheetType, start, nil, err)
	}

	raw, err := ai.NewExtractor(r.Gateway).Extract(ctx, rc, req.Files, mapping.ExtractionSections)
	if err != nil {
		return r.fail(rc, "document", req.SheetType, start, nil, err)
	}
	if len(raw) == 0 {
		return r.fail(rc, "document", req.SheetType, start, raw,
			fmt.Errorf("データ抽出プロセス全体でエラーが発生（抽出結果が空です）"))
	}

	reconciled := ai.NewReconciler(r.Gateway).Reconcile(ctx, rc, raw, m)
	if len(reconciled) == 0 {
		return r.fail(rc, "document", req.SheetType, start, raw,
			fmt.Errorf("AIマッピングに失敗しました（全バッチが失敗）"))
	}

	targetID, targetURL, err := r.resolveTarget(ctx, rc, req.SpreadsheetID, req.TemplateProtection, req.SheetType, reconciled)
	if err != nil {
		return r.fail(rc, "document", req.SheetType, start, raw, err)
	}

	rc.StartStep("sheet_write")
	writeCount, err := sheets.WriteMapped(ctx, r.Sheets, targetID, req.SheetName, m, reconciled)
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return r.fail(rc, "document", req.SheetType, start, raw, err)
	}
	rc.EndStep(common.StepStatusSuccess, nil, nil)

	if req.BackupSources {
		r.backupSources(ctx, rc, req.Files)
	}

	result := &RunResult{
		RunID:      rc.RunID,
		Success:    true,
		WriteCount: writeCount,
		TargetURL:  targetURL,
		Raw:        raw,
		Reconciled: reconciled,
		Warnings:   rc.Warnings,
		Summary:    rc.GetSummary(),
	}
	r.saveHistory(rc, "document", req.SheetType, start, result, fileNames(req.Files))
	return result, nil
}

// RunAudio executes transcribe → summarize → write for meeting audio.
// When summarization fails but a transcript exists, the raw transcript is
// written instead of aborting the run.
func (r *Runner) RunAudio(ctx context.Context, req AudioRequest) (*RunResult, error) {
	rc := common.NewRunContext(req.Kind.String())
	start := time.Now()

	summarizer := ai.NewSummarizer(r.Gateway)
	var record map[string]interface{}
	var transcript string
	var err error
	if req.Transcript != "" {
		transcript = req.Transcript
		record, err = summarizer.SummarizeTranscript(ctx, rc, transcript, req.Kind)
	} else {
		record, transcript, err = summarizer.ProcessAudio(ctx, rc, req.AudioPath, req.Kind)
	}
	if err != nil {
		if transcript == "" {
			return r.fail(rc, "audio", req.Kind.String(), start, nil, err)
		}
		rc.AddWarning("⚠️ 要約データの生成に失敗したため、文字起こし全文を転記します")
		record = map[string]interface{}{ai.TranscriptKey: transcript}
	}

	targetID, targetURL, err := r.resolveTarget(ctx, rc, req.SpreadsheetID, req.TemplateProtection, req.Kind.String(), record)
	if err != nil {
		return r.fail(rc, "audio", req.Kind.String(), start, record, err)
	}

	rc.StartStep("sheet_write")
	var writeCount int
	if narrative, ok := record[ai.TranscriptKey].(string); ok && len(record) == 1 {
		writeCount, err = sheets.WriteNarrativeCell(ctx, r.Sheets, targetID, req.SheetName, narrative)
	} else {
		writeCount, err = sheets.AppendMeetingRow(ctx, r.Sheets, targetID, req.SheetName, record)
	}
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return r.fail(rc, "audio", req.Kind.String(), start, record, err)
	}
	rc.EndStep(common.StepStatusSuccess, nil, nil)

	result := &RunResult{
		RunID:      rc.RunID,
		Success:    true,
		WriteCount: writeCount,
		TargetURL:  targetURL,
		Raw:        map[string]interface{}{ai.TranscriptKey: transcript},
		Reconciled: record,
		Warnings:   rc.Warnings,
		Summary:    rc.GetSummary(),
	}
	r.saveHistory(rc, "audio", req.Kind.String(), start, result, []string{req.AudioName})
	return result, nil
}

// loadMapping takes an inline definition when provided, otherwise the
// configured definition file through the TTL cache.
func (r *Runner) loadMapping(override string) (*mapping.Mapping, error) {
	if override != "" {
		return mapping.Parse(override)
	}
	return storage.GetOrLoadMapping(configs.MAPPING_FILE_PATH)
}

// resolveTarget decides what spreadsheet the run writes to. With template
// protection on, the configured sheet is treated as a template and copied
// first, so reruns never clobber it.
func (r *Runner) resolveTarget(ctx context.Context, rc *common.RunContext, spreadsheetID string, protect bool, sheetType string, record map[string]interface{}) (string, string, error) {
	if !protect {
		return spreadsheetID, r.Sheets.SpreadsheetURL(spreadsheetID), nil
	}
	copied, err := sheets.CopyFromTemplate(ctx, rc, r.Sheets, spreadsheetID, configs.DESTINATION_FOLDER_ID, sheetType, record)
	if err != nil {
		return "", "", err
	}
	return copied.ID, copied.URL, nil
}

// backupSources uploads the ingested files to the backup folder. Failures
// only warn: the sheet is already written by the time backups run.
func (r *Runner) backupSources(ctx context.Context, rc *common.RunContext, files []ai.SourceFile) {
	if configs.BACKUP_FOLDER_ID == "" {
		rc.LogWarning("☁️ BACKUP_FOLDER_IDが未設定のためバックアップをスキップします")
		return
	}

	rc.StartStep("drive_backup")
	for _, f := range files {
		src, err := os.Open(f.Path)
		if err != nil {
			rc.AddWarning("⚠️ %s のバックアップに失敗しました: %s", f.Name, err)
			continue
		}
		mimeType := processor.MIMETypeOf(f.Path)
		_, err = r.Sheets.UploadBackup(ctx, src, f.Name, configs.BACKUP_FOLDER_ID, mimeType)
		src.Close()
		if err != nil {
			rc.AddWarning("⚠️ %s のバックアップに失敗しました: %s", f.Name, err)
		}
	}
	rc.EndStep(common.StepStatusSuccess, nil, nil)
}

func (r *Runner) fail(rc *common.RunContext, mode, sheetType string, start time.Time, raw map[string]interface{}, err error) (*RunResult, error) {
	rc.LogError("処理を中断しました: %s", err)
	result := &RunResult{
		RunID:    rc.RunID,
		Success:  false,
		Raw:      raw,
		Warnings: rc.Warnings,
		Summary:  rc.GetSummary(),
	}
	r.saveHistory(rc, mode, sheetType, start, result, nil)
	return result, err
}

func (r *Runner) saveHistory(rc *common.RunContext, mode, sheetType string, start time.Time, result *RunResult, sourceFiles []string) {
	if !storage.Enabled() {
		return
	}
	storage.SaveRunRecord(storage.RunRecord{
		RunID:      rc.RunID,
		Mode:       mode,
		SheetType:  sheetType,
		Success:    result.Success,
		WriteCount: result.WriteCount,
		TargetURL:  result.TargetURL,
		Warnings:   rc.Warnings,
		TokenUsage: map[string]interface{}{
			"input_tokens":  rc.TotalTokens.InputTokens,
			"output_tokens": rc.TotalTokens.OutputTokens,
			"total_tokens":  rc.TotalTokens.TotalTokens,
			"cost_jpy":      rc.TotalTokens.CostJPY,
		},
		DurationMS:  time.Since(start).Milliseconds(),
		SourceFiles: sourceFiles,
	})
}

func fileNames(files []ai.SourceFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
