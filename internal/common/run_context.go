// run_context.go - Per-run tracking and logging system

package common

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kaigodx/care_sheet_gemini/configs"
)

// RunContext tracks one processing run with timing, token usage and cost.
// It replaces any ambient session state: created at run start, passed through
// every stage, discarded at run end.
type RunContext struct {
	RunID               string
	SheetType           string
	StartTime           time.Time
	Steps               []StepLog
	Warnings            []string
	TotalTokens         TokenUsage
	CurrentStep         string
	CurrentStepStart    time.Time
	CurrentSubSteps     []SubStepLog
	CurrentSubStep      string
	CurrentSubStepStart time.Time
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string       `json:"name"`
	StartTime time.Time    `json:"start_time"`
	Duration  int64        `json:"duration_ms"`
	Status    string       `json:"status"` // "success", "failed", "skipped"
	Tokens    *TokenUsage  `json:"tokens,omitempty"`
	Error     string       `json:"error,omitempty"`
	SubSteps  []SubStepLog `json:"sub_steps,omitempty"`
}

// SubStepLog represents a detailed sub-operation within a step
type SubStepLog struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration_ms"`
	Details   string    `json:"details,omitempty"`
}

// Step statuses recorded in StepLog.Status.
const (
	StepStatusSuccess = "success"
	StepStatusError   = "failed"
	StepStatusSkipped = "skipped"
)

// TokenUsage tracks API token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CostJPY      float64 `json:"cost_jpy"`
}

// Add accumulates another usage record into this one.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.TotalTokens += other.TotalTokens
	t.CostUSD += other.CostUSD
	t.CostJPY += other.CostJPY
}

// NewRunContext creates a new run tracking context
func NewRunContext(sheetType string) *RunContext {
	runID := uuid.New().String()
	now := time.Now()

	log.Printf("[%s] 🚀 新しい処理を開始 | シート種別: %s | 時刻: %s", runID, sheetType, now.Format("15:04:05"))

	return &RunContext{
		RunID:       runID,
		SheetType:   sheetType,
		StartTime:   now,
		Steps:       []StepLog{},
		TotalTokens: TokenUsage{},
	}
}

// StartStep begins tracking a new processing step
func (rc *RunContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()

	stepDescriptions := map[string]string{
		"upload_source_files": "📂 資料をアップロード",
		"document_extraction": "🔍 帳票から情報を抽出 (AI)",
		"schema_reconcile":    "🗺️ 抽出データをシート項目にマッピング (AI)",
		"audio_transcribe":    "🎙️ 音声を文字起こし (AI)",
		"audio_summarize":     "📝 会議録を作成 (AI)",
		"copy_template":       "📋 テンプレートをコピー",
		"sheet_write":         "📊 スプレッドシートへ転記",
		"drive_backup":        "☁️ 資料をバックアップ",
	}

	desc := stepDescriptions[stepName]
	if desc == "" {
		desc = stepName
	}

	log.Printf("[%s] \n┌── %s", rc.RunID, desc)
}

// EndStep completes the current step and records timing
func (rc *RunContext) EndStep(status string, tokens *TokenUsage, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
		SubSteps:  rc.CurrentSubSteps,
	}

	if err != nil {
		stepLog.Error = err.Error()
		log.Printf("[%s] ❌ 失敗 - %s (%.2f秒) - エラー: %v",
			rc.RunID, rc.CurrentStep, float64(duration)/1000, err)
	} else {
		logMsg := fmt.Sprintf("[%s] └── ✅ 完了: %.2f秒",
			rc.RunID, float64(duration)/1000)

		if tokens != nil {
			rc.TotalTokens.InputTokens += tokens.InputTokens
			rc.TotalTokens.OutputTokens += tokens.OutputTokens
			rc.TotalTokens.TotalTokens += tokens.TotalTokens
			rc.TotalTokens.CostUSD += tokens.CostUSD
			rc.TotalTokens.CostJPY += tokens.CostJPY

			logMsg += fmt.Sprintf(" | 🪙 Tokens: %d入力 + %d出力 = %d | 💰 費用: ¥%.2f",
				tokens.InputTokens, tokens.OutputTokens, tokens.TotalTokens, tokens.CostJPY)
		}

		if len(rc.CurrentSubSteps) > 0 {
			logMsg += fmt.Sprintf(" | サブステップ: %d", len(rc.CurrentSubSteps))
		}

		log.Print(logMsg)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
	rc.CurrentSubSteps = []SubStepLog{}
}

// StartSubStep begins tracking a detailed sub-operation
func (rc *RunContext) StartSubStep(subStepName string) {
	rc.CurrentSubStep = subStepName
	rc.CurrentSubStepStart = time.Now()

	subStepDesc := map[string]string{
		"image_preprocessing": "🔧 画像を補正",
		"init_gemini_client":  "🤖 AIへ接続",
		"build_prompt":        "📢 プロンプトを作成",
		"call_gemini_api":     "🚀 Gemini APIを呼び出し",
		"parse_json_response": "🔄 結果を解析",
		"wait_file_active":    "⏳ サーバー側の処理待ち",
		"delete_remote_files": "🧹 アップロード済みファイルを削除",
	}

	desc := subStepDesc[subStepName]
	if desc == "" {
		desc = subStepName
	}

	log.Printf("[%s]    ├─ %s...", rc.RunID, desc)
}

// EndSubStep completes the current sub-step and records timing
func (rc *RunContext) EndSubStep(details string) {
	if rc.CurrentSubStep == "" {
		return
	}

	duration := time.Since(rc.CurrentSubStepStart).Milliseconds()

	subStepLog := SubStepLog{
		Name:      rc.CurrentSubStep,
		StartTime: rc.CurrentSubStepStart,
		Duration:  duration,
		Details:   details,
	}

	rc.CurrentSubSteps = append(rc.CurrentSubSteps, subStepLog)

	detailsMsg := ""
	if details != "" {
		detailsMsg = " | " + details
	}
	log.Printf("[%s]    └─ ✅ %.2f秒%s",
		rc.RunID, float64(duration)/1000, detailsMsg)

	rc.CurrentSubStep = ""
}

// AddWarning records a user-visible soft warning (skipped section, repaired
// JSON, blocked batch). Warnings never abort the run.
func (rc *RunContext) AddWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	rc.Warnings = append(rc.Warnings, msg)
	log.Printf("[%s] ⚠️  %s", rc.RunID, msg)
}

// LogInfo logs info-level message with run ID prefix
func (rc *RunContext) LogInfo(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] ℹ️  %s", rc.RunID, msg)
}

// LogWarning logs warning-level message with run ID prefix
func (rc *RunContext) LogWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] ⚠️  %s", rc.RunID, msg)
}

// LogError logs error-level message with run ID prefix
func (rc *RunContext) LogError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] ❌ %s", rc.RunID, msg)
}

// CalculateTokenCost computes USD and JPY cost from token counts
func CalculateTokenCost(inputTokens, outputTokens int) TokenUsage {
	totalTokens := inputTokens + outputTokens

	inputCost := float64(inputTokens) * configs.GEMINI_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.GEMINI_OUTPUT_PRICE_PER_MILLION / 1_000_000
	costUSD := inputCost + outputCost
	costJPY := costUSD * configs.USD_TO_JPY

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		CostUSD:      costUSD,
		CostJPY:      costJPY,
	}
}

// GetSummary returns a final summary of the entire run
func (rc *RunContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	summary := map[string]interface{}{
		"run_id":             rc.RunID,
		"sheet_type":         rc.SheetType,
		"total_duration_ms":  totalDuration,
		"total_duration_sec": float64(totalDuration) / 1000,
		"step_breakdown":     stepBreakdown,
		"total_steps":        len(rc.Steps),
		"warnings":           rc.Warnings,
		"token_usage": map[string]interface{}{
			"input_tokens":  rc.TotalTokens.InputTokens,
			"output_tokens": rc.TotalTokens.OutputTokens,
			"total_tokens":  rc.TotalTokens.TotalTokens,
			"cost_usd":      fmt.Sprintf("$%.4f", rc.TotalTokens.CostUSD),
			"cost_jpy":      fmt.Sprintf("¥%.2f", rc.TotalTokens.CostJPY),
		},
	}

	log.Printf("[%s] \n═══ 🎯 処理結果 ═══", rc.RunID)
	log.Printf("[%s] ⏱️  合計: %.2f秒 | 📝 ステップ: %d | 🪙 Tokens: %d入力 + %d出力 = %d | 💰 費用: ¥%.2f",
		rc.RunID,
		float64(totalDuration)/1000,
		len(rc.Steps),
		rc.TotalTokens.InputTokens,
		rc.TotalTokens.OutputTokens,
		rc.TotalTokens.TotalTokens,
		rc.TotalTokens.CostJPY)
	log.Printf("[%s] ═══════════════════════════\n", rc.RunID)

	return summary
}
