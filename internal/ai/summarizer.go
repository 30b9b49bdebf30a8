// summarizer.go - Meeting audio transcription and minutes generation

package ai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
	"github.com/kaigodx/care_sheet_gemini/internal/jsonrepair"
	"github.com/kaigodx/care_sheet_gemini/internal/processor"
)

// MeetingKind selects which minutes template drives summarization.
type MeetingKind int

const (
	// ServiceMeeting is a サービス担当者会議: structured JSON output written
	// as one spreadsheet row.
	ServiceMeeting MeetingKind = iota
	// ManagementMeeting is an internal 運営会議: free-form narrative minutes
	// written into a single cell.
	ManagementMeeting
)

func (k MeetingKind) String() string {
	if k == ManagementMeeting {
		return "運営会議議事録"
	}
	return "サービス担当者会議議事録"
}

// Summarizer turns meeting audio or transcripts into minutes records.
type Summarizer struct {
	gw Gateway
}

func NewSummarizer(gw Gateway) *Summarizer {
	return &Summarizer{gw: gw}
}

// ProcessAudio uploads a recording, transcribes it verbatim, then summarizes
// the transcript. The transcript is returned alongside the record so callers
// can keep it for debugging and as a fallback when summarization fails.
// The uploaded audio handle is deleted before returning, on every path.
func (s *Summarizer) ProcessAudio(ctx context.Context, rc *common.RunContext, audioPath string, kind MeetingKind) (map[string]interface{}, string, error) {
	transcript, err := s.Transcribe(ctx, rc, audioPath)
	if err != nil {
		return nil, "", err
	}

	record, err := s.SummarizeTranscript(ctx, rc, transcript, kind)
	if err != nil {
		return nil, transcript, err
	}
	return record, transcript, nil
}

// Transcribe uploads the audio file and asks for a verbatim transcript.
func (s *Summarizer) Transcribe(ctx context.Context, rc *common.RunContext, audioPath string) (string, error) {
	rc.StartStep("audio_transcribe")

	data, mimeType, err := processor.RawFile(audioPath)
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return "", err
	}

	ref, err := s.gw.Upload(ctx, bytes.NewReader(data), mimeType)
	if err != nil {
		err = fmt.Errorf("音声ファイルのアップロードに失敗: %w", err)
		rc.EndStep(common.StepStatusError, nil, err)
		return "", err
	}
	defer func() {
		rc.StartSubStep("delete_remote_files")
		if derr := s.gw.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			rc.LogWarning("🧹 %s の削除に失敗しました: %s", ref.Name, derr)
		}
		rc.EndSubStep(ref.Name)
	}()

	rc.StartSubStep("wait_file_active")
	err = s.gw.WaitActive(ctx, rc, ref)
	rc.EndSubStep("")
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return "", err
	}

	rc.StartSubStep("call_gemini_api")
	result, err := s.gw.Generate(ctx, rc, TextPart(TranscriptionPrompt), FilePart(ref))
	rc.EndSubStep("")
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return "", err
	}
	if result.Blocked {
		err = fmt.Errorf("文字起こしがブロックされました (%s)", result.BlockReason)
		rc.EndStep(common.StepStatusError, result.Usage, err)
		return "", err
	}

	rc.EndStep(common.StepStatusSuccess, result.Usage, nil)
	return result.Text, nil
}

// SummarizeTranscript produces the minutes record for an already-transcribed
// meeting. Service meetings return the structured template keys; management
// meetings return the whole narrative under 会議録全文.
func (s *Summarizer) SummarizeTranscript(ctx context.Context, rc *common.RunContext, transcript string, kind MeetingKind) (map[string]interface{}, error) {
	rc.StartStep("audio_summarize")

	var prompt string
	if kind == ManagementMeeting {
		prompt = ManagementMeetingPrompt(transcript)
	} else {
		prompt = ServiceMeetingPrompt(transcript)
	}

	rc.StartSubStep("call_gemini_api")
	result, err := s.gw.Generate(ctx, rc, TextPart(prompt))
	rc.EndSubStep("")
	if err != nil {
		rc.EndStep(common.StepStatusError, nil, err)
		return nil, err
	}
	if result.Blocked {
		err = fmt.Errorf("要約がブロックされました (%s)", result.BlockReason)
		rc.EndStep(common.StepStatusError, result.Usage, err)
		return nil, err
	}

	if result.Truncated {
		rc.AddWarning("⚠️ 要約の応答が出力トークン上限で途切れました")
	}

	if kind == ManagementMeeting {
		rc.EndStep(common.StepStatusSuccess, result.Usage, nil)
		return map[string]interface{}{TranscriptKey: strings.TrimSpace(result.Text)}, nil
	}

	rc.StartSubStep("parse_json_response")
	record, err := jsonrepair.RepairAndParse(jsonrepair.StripFences(result.Text))
	rc.EndSubStep("")
	if err != nil {
		err = fmt.Errorf("要約データの解析に失敗: %w", err)
		rc.EndStep(common.StepStatusError, result.Usage, err)
		return nil, err
	}

	EnsureConclusionPhrase(record)
	rc.EndStep(common.StepStatusSuccess, result.Usage, nil)
	return record, nil
}

// EnsureConclusionPhrase appends the mandatory plan-submission phrase to the
// 結論 field when the model left it out. The original conclusion text is
// preserved verbatim ahead of the appended phrase. A record without a 結論
// key, or with a non-string value, is left untouched.
func EnsureConclusionPhrase(record map[string]interface{}) {
	v, ok := record[ConclusionKey]
	if !ok {
		return
	}
	text, ok := v.(string)
	if !ok {
		return
	}
	if strings.Contains(text, MandatoryConclusionPhrase) {
		return
	}
	if text == "" {
		record[ConclusionKey] = MandatoryConclusionPhrase
		return
	}
	record[ConclusionKey] = text + "\n" + MandatoryConclusionPhrase
}
