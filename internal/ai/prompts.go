// prompts.go - prompt templates for extraction, summarization and reconciliation

package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TranscriptionPrompt asks for a verbatim transcript. Summarization happens
// in a separate call so the transcript can also be kept for debugging.
const TranscriptionPrompt = "音声データを一字一句、聞こえたまま忠実に文字起こししてください。\n" +
	"整文、要約、言い換え、話者分離のタグ付けは一切行わないでください。\n" +
	"フィラー（えー、あー等）も発話されている通りに記述してください。"

// MandatoryConclusionPhrase must appear in the 結論 field of every
// service-meeting summary. The model regularly omits it, so the summarizer
// appends it after generation when missing.
const MandatoryConclusionPhrase = "各サービス事業所は個別サービス計画書を提出してください。"

// ConclusionKey is the summary field the mandatory phrase lives in.
const ConclusionKey = "結論"

// TranscriptKey holds the full meeting text in a management-meeting record,
// and the raw transcript fallback when summarization fails.
const TranscriptKey = "会議録全文"

// ServiceMeetingKeys are the output keys of the service-meeting template.
// The row writer matches these against spreadsheet headers by substring, so
// they are part of the write contract, not just prompt decoration.
var ServiceMeetingKeys = []string{
	"開催日", "開催場所", "開催時間", "開催回数",
	"担当者名", "利用者名", "検討内容", "検討した項目", "結論",
}

// ServiceMeetingPrompt builds the summarization prompt for a service
// provider meeting (サービス担当者会議). Narrative values embed \n escapes so
// each value stays a single-line JSON string.
func ServiceMeetingPrompt(transcript string) string {
	return `
あなたは、ケアマネジメントの専門知識を有する、医療・福祉分野のプロの記録担当者です。
入力された「会議の文字起こしテキスト」を詳細に分析し、指定された項目を抽出・要約して、
**JSON形式**で出力してください。

# 入力テキスト
` + transcript + `

# 出力要件
以下のキーを持つJSONオブジェクトを出力してください。
値はマークダウンを含まないプレーンテキストにしてください。

JSONキー仕様:
- "開催日": 日付（例: 2025年4月1日（10:00~11:00））。日付のみ。
- "開催場所": 場所のみ。
- "開催時間": 時間のみ。
- "開催回数": 回数のみ（例: 1）。
- "担当者名": 名前のみ。
- "利用者名": 名前のみ。
- "検討内容": 【統合出力フォーマット】に従って作成された「本人・家族の意向」「心身・生活状況」「各事業所の役割分担」「福祉用具検討」などをまとめたテキスト。
- "検討した項目": 【作成する項目】（会議の目的、暫定プラン、重要事項）をまとめたテキスト。
- "結論": 【結論】（決定事項、今後の方針、モニタリング点など）をまとめたテキスト。

**重要な注意事項**:
- 「検討内容」は、以下のフォーマットを厳守して記述してください（ただしJSONの値として格納するため改行コードは \n とすること）。
    - 【本人及び家族の意向】...
    - 【会議の結論・ケアプラン詳細】...
    - 各事業所の役割分担...
    - 福祉用具・住宅改修等...
- 「検討した項目」は、1.【会議の目的】 2.【暫定プランに関する事項】 3.【重要事項の抽出】 の形式でまとめること。
- 「結論」は、箇条書きで6~8項目程度にまとめること。結論の末尾には「` + MandatoryConclusionPhrase + `」を必ず含めること。

JSON出力例:
{
  "開催日": "2025年4月1日",
  "開催場所": "自宅",
  "開催時間": "10:00~11:00",
  "開催回数": "1",
  "担当者名": "介護 太郎",
  "利用者名": "福祉 花子",
  "検討内容": "【本人及び家族の意向】\n・本人⇒...",
  "検討した項目": "1. 【会議の目的】...",
  "結論": "1. ..."
}
`
}

// ManagementMeetingPrompt builds the minutes prompt for an internal
// management meeting (運営会議). Output is plain narrative text, not JSON.
func ManagementMeetingPrompt(transcript string) string {
	return `
以下の会議の文字起こしテキストを元に、指示に従って議事録を作成してください。

# 文字起こしテキスト
` + transcript + `

# 指示内容
▼日時▼
会議の実施日と時間を確認してください。日付以外は記載する必要なし。
下記のように記載して
令和7年10月6日（月）8時30分～8時40分

▼開催場所▼
開催場所を確認して抽出して提示してください。
「開催場所は下記です」のような言葉は不要です。開催場所のみ提示してください。

▼参加者▼
「参加者：武島、加藤、川路」のように "、" で区切って名前が入っています。
「参加者：　、　、　、」の部分を抽出してください。
おそらくテキストデータの最初の方に出てくるはずです。

▼議題項目▼
文字起こしされたテキストを確認して、議題として下記の内容が含まれているか否かを確認し、
含まれている場合は議題の横に●を記載してください。
①現に抱える処遇困難ケースについて
②過去に取り扱ったケースについての問題点及びその改善方策
③地域における事業所や活用できる社会資源の状況
④保健医療及び福祉に関する諸制度
⑤ケアマネジメントに関する技術
⑥利用者からの苦情があった場合は、その内容及び改善方針
⑦その他必要な事項

▼24時間対応▼
■24時間連絡対応 ※営業時間外の対応 に関して話された内容があれば、
日時・対応者・内容と対処を、①②③の連番でまとめてください。

▼共有情報▼
【作成ルール】
フィラー（間投詞）や本筋に関係のない相槌、感情的な表現はすべて削除し、
決定事項、報告事項、共有事項、今後の対応といった「事実」のみを抽出してください。
内容は「■利用者情報共有」「■その他共有事項」のセクションに分けてください。
「■利用者情報共有」セクションでは、各担当者ごとに報告内容を記述してください。
文体は丁寧語（です・ます調）ではなく、報告的かつ簡潔な「体言止め」や
「～ている」「～していく」「～とのこと」「～あり」といった文末表現で統一してください。
利用者に関する報告は「（氏名）様」「（介護度）」「（主たる疾患・状況）」
「（報告内容）」「（今後の対応）」が簡潔に伝わるように記述してください。

【指示】
上記のルールを厳守し、入力データを要約してください。
提示する内容は結果のみで良いです。説明等は書かないでください。
`
}

// ReconcileBatchPrompt builds one reconciliation batch prompt. preamble is
// the fiction-framing context block; without it the safety filter drops
// whole batches of legitimate assessment data as medical content.
func ReconcileBatchPrompt(preamble string, targets []string, rawRecord map[string]interface{}) string {
	targetJSON, _ := json.MarshalIndent(targets, "", "  ")
	rawJSON, _ := json.MarshalIndent(rawRecord, "", "  ")

	var b strings.Builder
	b.WriteString(`あなたは単純なデータ変換プログラムです。
入力されたJSONデータを、指定されたキーを持つJSONに機械的に変換してください。
文章の意味内容は考慮せず、文字列操作のみを行ってください。

`)
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, `## ルール
1. 単純な文字列の一致または包含関係でマッピングしてください。
2. 値がない場合は空文字 "（空白）" を入れてください。
3. **ターゲット項目に「(選択肢: ...)」と記載されている場合は、必ずその選択肢の中から最も適切なものを選んでください。**
4. 出力は必ず有効なJSON形式にしてください。

## ターゲット項目リスト（項目名と選択肢）
%s

## 抽出された生データ
%s

## 出力形式
以下のJSON形式のみを出力してください。キーはターゲット項目リストの「項目名」部分（括弧より前）をそのまま使用してください。
{
    "項目名1": "値1",
    "項目名2": "値2",
    ...
}
`, targetJSON, rawJSON)
	return b.String()
}
