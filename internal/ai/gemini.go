// gemini.go - Gemini implementation of the model gateway

package ai

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kaigodx/care_sheet_gemini/configs"
	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/ratelimit"
)

// filePollInterval is how often WaitActive checks server-side ingestion.
const filePollInterval = 1 * time.Second

// GeminiGateway talks to the Gemini API. One client is shared across runs;
// the pipeline itself is strictly sequential.
type GeminiGateway struct {
	client    *genai.Client
	modelName string
}

// NewGeminiGateway creates a gateway for the configured model.
func NewGeminiGateway(ctx context.Context, apiKey, modelName string) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGateway{client: client, modelName: modelName}, nil
}

// Close releases the underlying client.
func (g *GeminiGateway) Close() error {
	return g.client.Close()
}

// model configures deterministic-leaning decoding and disables the safety
// filter thresholds. The corpus is medical/elder-care text; default
// thresholds block legitimate assessment content, so filtering is turned
// off for every harm category. Blocks that still occur surface as
// Result.Blocked.
func (g *GeminiGateway) model() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.1)
	model.SetTopP(0.95)
	model.SetTopK(64)
	model.SetMaxOutputTokens(8192)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	return model
}

// Generate submits the prompt with rate-limit retry. Only rate limits and
// transient service failures are retried; everything else propagates on
// the first attempt.
func (g *GeminiGateway) Generate(ctx context.Context, rc *common.RunContext, parts ...Part) (*Result, error) {
	model := g.model()
	genaiParts := toGenaiParts(parts)

	maxAttempts := configs.GENERATE_MAX_ATTEMPTS
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr *GatewayError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ratelimit.WaitForRateLimit()

		resp, err := model.GenerateContent(ctx, genaiParts...)
		if err == nil {
			if attempt > 1 {
				rc.LogInfo("✅ %d回目の試行で成功しました", attempt)
			}
			return toResult(resp), nil
		}

		lastErr = categorize(err)
		rc.LogError("API呼び出しに失敗 (%d/%d): %s", attempt, maxAttempts, lastErr.Error())

		if !lastErr.Retryable() || attempt >= maxAttempts {
			break
		}

		delay := lastErr.RetryAfter
		if delay <= 0 {
			delay = time.Duration(configs.RATE_LIMIT_DEFAULT_WAIT)*time.Second + retryDelayMargin
		}
		rc.LogWarning("⏳ %.1f秒待機して再試行します... (%d/%d)", delay.Seconds(), attempt, maxAttempts)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("再試行待機中にキャンセルされました: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("Gemini API呼び出しが%d回失敗しました: %w", maxAttempts, lastErr)
}

// Upload pushes file bytes to the Gemini file service.
func (g *GeminiGateway) Upload(ctx context.Context, r io.Reader, mimeType string) (*FileRef, error) {
	f, err := g.client.UploadFile(ctx, "", r, &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("ファイルのアップロードに失敗: %w", categorize(err))
	}
	return &FileRef{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType}, nil
}

// WaitActive polls the file until it leaves the processing state. The
// deadline is explicit: server-side ingestion with no upper bound is a
// liveness risk, so FILE_WAIT_TIMEOUT caps the wait.
func (g *GeminiGateway) WaitActive(ctx context.Context, rc *common.RunContext, ref *FileRef) error {
	timeout := time.Duration(configs.FILE_WAIT_TIMEOUT) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for {
		f, err := g.client.GetFile(ctx, ref.Name)
		if err != nil {
			return fmt.Errorf("ファイル状態の取得に失敗: %w", categorize(err))
		}

		switch f.State {
		case genai.FileStateActive:
			ref.URI = f.URI
			return nil
		case genai.FileStateFailed:
			return fmt.Errorf("サーバー側のファイル処理に失敗しました: %s", ref.Name)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("ファイル処理待ちがタイムアウトしました (%s)", timeout)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("ファイル処理待ち中にキャンセルされました: %w", ctx.Err())
		case <-time.After(filePollInterval):
		}
	}
}

// Delete releases a file handle on the model service.
func (g *GeminiGateway) Delete(ctx context.Context, ref *FileRef) error {
	if err := g.client.DeleteFile(ctx, ref.Name); err != nil {
		return fmt.Errorf("ファイルの削除に失敗: %w", categorize(err))
	}
	return nil
}

func toGenaiParts(parts []Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.File != nil {
			out = append(out, genai.FileData{MIMEType: p.File.MIMEType, URI: p.File.URI})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

func toResult(resp *genai.GenerateContentResponse) *Result {
	result := &Result{}

	if resp.UsageMetadata != nil {
		usage := common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
		result.Usage = &usage
	}

	// Zero candidates means the safety filter dropped the response. That is
	// a content decision, reported to the caller, never retried here.
	if len(resp.Candidates) == 0 {
		result.Blocked = true
		if resp.PromptFeedback != nil {
			result.BlockReason = fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		}
		return result
	}

	candidate := resp.Candidates[0]
	result.Truncated = candidate.FinishReason == genai.FinishReasonMaxTokens

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				result.Text += string(text)
			}
		}
	}
	return result
}
