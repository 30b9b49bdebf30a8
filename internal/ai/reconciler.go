// reconciler.go - AI mapping of free-form extracted keys onto schema fields

package ai

import (
	"context"

	"github.com/kaigodx/care_sheet_gemini/configs"
	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/jsonrepair"
	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
)

// Reconciler assigns freely-named extraction output to mapped schema
// fields. Key names out of extraction never line up with the sheet's 項目名
// exactly, and substring matching proved too brittle for that vocabulary,
// so the assignment itself is a model call.
type Reconciler struct {
	gw Gateway
}

func NewReconciler(gw Gateway) *Reconciler {
	return &Reconciler{gw: gw}
}

// Reconcile maps raw extracted values onto the mapping's field names in
// fixed-size batches. A blocked or unparseable batch is skipped with a
// warning; its fields simply stay unwritten. Unmatched fields come back as
// the blank sentinel, which the sheet writer turns into an empty cell.
func (r *Reconciler) Reconcile(ctx context.Context, rc *common.RunContext, raw map[string]interface{}, m *mapping.Mapping) map[string]interface{} {
	if m == nil || m.Len() == 0 || len(raw) == 0 {
		return raw
	}

	rc.StartStep("schema_reconcile")

	descriptors := m.FieldDescriptors()
	batchSize := configs.RECONCILE_BATCH_SIZE
	if batchSize <= 0 {
		batchSize = 30
	}
	totalBatches := (len(descriptors) + batchSize - 1) / batchSize

	reconciled := map[string]interface{}{}
	var usage common.TokenUsage

	for i := 0; i < len(descriptors); i += batchSize {
		end := i + batchSize
		if end > len(descriptors) {
			end = len(descriptors)
		}
		batchNum := i/batchSize + 1
		rc.LogInfo("🗺️ マッピング実行中... (バッチ %d/%d)", batchNum, totalBatches)

		rc.StartSubStep("build_prompt")
		prompt := ReconcileBatchPrompt(configs.RECONCILE_PREAMBLE, descriptors[i:end], raw)
		rc.EndSubStep("")

		rc.StartSubStep("call_gemini_api")
		result, err := r.gw.Generate(ctx, rc, TextPart(prompt))
		rc.EndSubStep("")
		if err != nil {
			rc.AddWarning("⚠️ バッチ %d の処理中にエラー: %s", batchNum, err)
			continue
		}
		if result.Usage != nil {
			usage.Add(*result.Usage)
		}
		if result.Blocked {
			rc.AddWarning("⚠️ バッチ %d がブロックされました (%s)。この部分はスキップされます", batchNum, result.BlockReason)
			continue
		}
		if result.Truncated {
			rc.AddWarning("⚠️ バッチ %d の応答が出力トークン上限で途切れました。末尾を補修して解析します", batchNum)
		}

		rc.StartSubStep("parse_json_response")
		batchResult, err := jsonrepair.RepairAndParse(jsonrepair.StripFences(result.Text))
		rc.EndSubStep("")
		if err != nil {
			rc.AddWarning("⚠️ バッチ %d の一部データの解析に失敗しました", batchNum)
			continue
		}

		jsonrepair.Merge(reconciled, batchResult)
	}

	rc.EndStep(common.StepStatusSuccess, &usage, nil)
	return reconciled
}
