// extractor.go - Section-by-section document extraction

package ai

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kaigodx/care_sheet_gemini/configs"
	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/jsonrepair"
	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
	"github.com/kaigodx/care_sheet_gemini/internal/processor"
)

// SourceFile is one uploaded assessment document on local disk.
type SourceFile struct {
	Name string
	Path string
}

// Extractor pulls structured data out of scanned assessment documents,
// one schema section at a time.
type Extractor struct {
	gw Gateway
}

func NewExtractor(gw Gateway) *Extractor {
	return &Extractor{gw: gw}
}

// Extract uploads every source file once, then runs each extraction
// section over all files and merges the results. A blocked or unparseable
// section is skipped with a warning; the record keeps what the other
// sections produced. The returned map is nil only when nothing could be
// uploaded at all.
//
// Every uploaded file handle is deleted before returning, on all paths.
// Remote file storage is quota-limited, so leaked handles cost money.
func (e *Extractor) Extract(ctx context.Context, rc *common.RunContext, files []SourceFile, sections []mapping.Section) (map[string]interface{}, error) {
	rc.StartStep("upload_source_files")
	refs := e.uploadAll(ctx, rc, files)
	defer e.deleteAll(ctx, rc, refs)

	usable := make([]*FileRef, 0, len(refs))
	for _, ref := range refs {
		if !ref.Unusable {
			usable = append(usable, ref)
		}
	}
	if len(usable) == 0 {
		err := fmt.Errorf("使用可能なファイルがありません（全ファイルのアップロードに失敗）")
		rc.EndStep(common.StepStatusError, nil, err)
		return nil, err
	}
	rc.EndStep(common.StepStatusSuccess, nil, nil)

	rc.StartStep("document_extraction")
	record := map[string]interface{}{}
	var usage common.TokenUsage

	for i, sec := range sections {
		rc.LogInfo("📄 セクション %d/%d: %s", i+1, len(sections), sec.Name)

		parts := make([]Part, 0, len(usable)+1)
		parts = append(parts, TextPart(sec.Prompt))
		for _, ref := range usable {
			parts = append(parts, FilePart(ref))
		}

		rc.StartSubStep("call_gemini_api")
		result, err := e.gw.Generate(ctx, rc, parts...)
		rc.EndSubStep(sec.Name)
		if err != nil {
			rc.AddWarning("⚠️ %s の処理中にエラー: %s", sec.Name, err)
			continue
		}
		if result.Usage != nil {
			usage.Add(*result.Usage)
		}
		if result.Blocked {
			rc.AddWarning("⚠️ %s がブロックされました (%s)。このセクションはスキップされます", sec.Name, result.BlockReason)
			continue
		}
		if result.Truncated {
			rc.AddWarning("⚠️ %s の応答が出力トークン上限で途切れました。末尾を補修して解析します", sec.Name)
		}

		rc.StartSubStep("parse_json_response")
		sectionData, err := jsonrepair.RepairAndParse(jsonrepair.StripFences(result.Text))
		rc.EndSubStep(sec.Name)
		if err != nil {
			rc.AddWarning("⚠️ %s の抽出に失敗しました（データ破損の可能性）", sec.Name)
			continue
		}

		jsonrepair.Merge(record, sectionData)
	}

	rc.EndStep(common.StepStatusSuccess, &usage, nil)
	return record, nil
}

// uploadAll pushes each file to the model service and waits for ingestion.
// A file that fails to upload or ingest is dropped, not fatal.
func (e *Extractor) uploadAll(ctx context.Context, rc *common.RunContext, files []SourceFile) []*FileRef {
	refs := make([]*FileRef, 0, len(files))
	for _, f := range files {
		data, mimeType, err := e.prepare(rc, f)
		if err != nil {
			rc.AddWarning("⚠️ %s の読み込みに失敗しました: %s", f.Name, err)
			continue
		}

		ref, err := e.gw.Upload(ctx, bytes.NewReader(data), mimeType)
		if err != nil {
			rc.AddWarning("⚠️ %s のアップロードに失敗しました: %s", f.Name, err)
			continue
		}

		rc.StartSubStep("wait_file_active")
		err = e.gw.WaitActive(ctx, rc, ref)
		rc.EndSubStep(f.Name)
		if err != nil {
			rc.AddWarning("⚠️ %s のサーバー側処理に失敗しました: %s", f.Name, err)
			// still tracked so the deferred cleanup releases it
			refs = append(refs, ref)
			ref.Unusable = true
			continue
		}
		refs = append(refs, ref)
	}

	usable := 0
	for _, ref := range refs {
		if !ref.Unusable {
			usable++
		}
	}
	rc.LogInfo("📂 %d/%d ファイルをアップロードしました", usable, len(files))
	return refs
}

func (e *Extractor) prepare(rc *common.RunContext, f SourceFile) ([]byte, string, error) {
	if configs.ENABLE_IMAGE_PREPROCESSING && processor.IsImage(f.Path) {
		rc.StartSubStep("image_preprocessing")
		data, mimeType, err := processor.PrepareScan(f.Path)
		rc.EndSubStep(f.Name)
		if err == nil {
			return data, mimeType, nil
		}
		rc.LogWarning("🔧 %s の画像補正に失敗、元画像を使用します: %s", f.Name, err)
	}
	return processor.RawFile(f.Path)
}

// deleteAll releases every uploaded handle. Run-level failures must not
// leak handles, so cancellation of the run context is ignored here.
func (e *Extractor) deleteAll(ctx context.Context, rc *common.RunContext, refs []*FileRef) {
	if len(refs) == 0 {
		return
	}
	rc.StartSubStep("delete_remote_files")
	cleanupCtx := context.WithoutCancel(ctx)
	for _, ref := range refs {
		if err := e.gw.Delete(cleanupCtx, ref); err != nil {
			rc.LogWarning("🧹 %s の削除に失敗しました: %s", ref.Name, err)
		}
	}
	rc.EndSubStep(fmt.Sprintf("%d件", len(refs)))
}
