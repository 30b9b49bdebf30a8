package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
)

func TestProcessAudioServiceMeeting(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: "えー、本日はですね、お集まりいただき..."},
			{Text: "```json\n" + `{"開催日": "2025年4月1日", "利用者名": "福祉 花子", "結論": "1. 居宅での生活を継続する。\n` + MandatoryConclusionPhrase + `"}` + "\n```"},
		},
	}
	rc := common.NewRunContext("サービス担当者会議議事録")
	audioPath := writeTempFile(t, "meeting.mp3", "not-really-audio")

	record, transcript, err := NewSummarizer(gw).ProcessAudio(t.Context(), rc, audioPath, ServiceMeeting)

	require.NoError(t, err)
	assert.Equal(t, "えー、本日はですね、お集まりいただき...", transcript)
	assert.Equal(t, "福祉 花子", record["利用者名"])
	assert.Contains(t, record[ConclusionKey], MandatoryConclusionPhrase)
	// audio handle released exactly once
	assert.Equal(t, []string{"files/fake-0"}, gw.deleted)
	// transcription prompt carries the file, summarization is text-only
	require.Len(t, gw.generated, 2)
	assert.Equal(t, 1, fileParts(gw.generated[0]))
	assert.Equal(t, 0, fileParts(gw.generated[1]))
}

func TestProcessAudioManagementMeeting(t *testing.T) {
	minutes := "■利用者情報共有\n　〇武　島：とくになし"
	gw := &fakeGateway{
		results: []*Result{
			{Text: "参加者：武島、加藤、川路..."},
			{Text: minutes + "\n"},
		},
	}
	rc := common.NewRunContext("運営会議議事録")
	audioPath := writeTempFile(t, "meeting.m4a", "x")

	record, _, err := NewSummarizer(gw).ProcessAudio(t.Context(), rc, audioPath, ManagementMeeting)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{TranscriptKey: minutes}, record)
}

// Summarization failure still hands the transcript back so the caller can
// fall back to writing the raw meeting text.
func TestProcessAudioSummaryBlocked(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: "文字起こし結果"},
			{Blocked: true, BlockReason: "OTHER"},
		},
	}
	rc := common.NewRunContext("サービス担当者会議議事録")
	audioPath := writeTempFile(t, "meeting.wav", "x")

	record, transcript, err := NewSummarizer(gw).ProcessAudio(t.Context(), rc, audioPath, ServiceMeeting)

	require.Error(t, err)
	assert.Nil(t, record)
	assert.Equal(t, "文字起こし結果", transcript)
	assert.Equal(t, []string{"files/fake-0"}, gw.deleted)
}

func TestSummarizeTranscriptAppendsMandatoryPhrase(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: `{"結論": "1. 訪問介護を週2回継続する。"}`},
		},
	}
	rc := common.NewRunContext("サービス担当者会議議事録")

	record, err := NewSummarizer(gw).SummarizeTranscript(t.Context(), rc, "本文", ServiceMeeting)

	require.NoError(t, err)
	assert.Equal(t, "1. 訪問介護を週2回継続する。\n"+MandatoryConclusionPhrase, record[ConclusionKey])
}

// The model may drop the 結論 key entirely. The post-condition check must
// leave the record as-is rather than panic or invent a field.
func TestSummarizeTranscriptMissingConclusionKey(t *testing.T) {
	gw := &fakeGateway{
		results: []*Result{
			{Text: `{"開催日": "2025年4月1日"}`},
		},
	}
	rc := common.NewRunContext("サービス担当者会議議事録")

	record, err := NewSummarizer(gw).SummarizeTranscript(t.Context(), rc, "本文", ServiceMeeting)

	require.NoError(t, err)
	assert.NotContains(t, record, ConclusionKey)
}

func TestEnsureConclusionPhrase(t *testing.T) {
	t.Run("既に含まれている場合は変更しない", func(t *testing.T) {
		original := "1. 決定事項。\n" + MandatoryConclusionPhrase
		record := map[string]interface{}{ConclusionKey: original}
		EnsureConclusionPhrase(record)
		assert.Equal(t, original, record[ConclusionKey])
	})

	t.Run("空文字にはフレーズのみ", func(t *testing.T) {
		record := map[string]interface{}{ConclusionKey: ""}
		EnsureConclusionPhrase(record)
		assert.Equal(t, MandatoryConclusionPhrase, record[ConclusionKey])
	})

	t.Run("文字列以外はそのまま", func(t *testing.T) {
		record := map[string]interface{}{ConclusionKey: []interface{}{"a"}}
		EnsureConclusionPhrase(record)
		assert.Equal(t, []interface{}{"a"}, record[ConclusionKey])
	})
}
