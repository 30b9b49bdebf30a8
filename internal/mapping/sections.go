// sections.go - Fixed extraction sections for the assessment-sheet pipeline

package mapping

// Section is one schema-scoped sub-prompt of the split extraction task.
// The list is fixed at compile time; splitting keeps each response inside
// the model's output-token budget so truncation repair stays a fallback,
// not the norm.
type Section struct {
	Name   string
	Prompt string
}

const sectionHeader = `あなたは介護アセスメント帳票の読み取り専門家です。
アップロードされた資料（PDF・画像）を読み取り、以下の観点の情報をJSON形式で抽出してください。

- キーは日本語の項目名、値は資料に書かれている内容をそのまま文字列で格納すること。
- 資料に記載のない項目は出力に含めないこと（空の値をでっち上げない）。
- 出力はJSONオブジェクトのみとし、説明文やマークダウンは含めないこと。

`

// ExtractionSections covers the assessment sheet in definition order.
// Sections target disjoint areas of the form, so cross-section key
// collisions are rare and last-write-wins merging is safe.
var ExtractionSections = []Section{
	{
		Name: "利用者基本情報",
		Prompt: sectionHeader + `## 抽出する観点: 利用者基本情報
氏名（漢字・フリガナ）、性別、生年月日、年齢、住所、電話番号、
要介護度・要支援度、認定の有効期間、被保険者番号、障害高齢者・認知症高齢者の日常生活自立度。`,
	},
	{
		Name: "家族構成・緊急連絡先",
		Prompt: sectionHeader + `## 抽出する観点: 家族構成・緊急連絡先
同居・別居の家族構成、続柄、主介護者、キーパーソン、緊急連絡先（氏名・続柄・電話番号）、
家族の介護力や就労状況に関する記載。`,
	},
	{
		Name: "健康状態・既往歴",
		Prompt: sectionHeader + `## 抽出する観点: 健康状態・既往歴
既往歴、現病名、主治医・医療機関、服薬内容、アレルギー、
身長・体重、麻痺・拘縮の有無、皮膚の状態（褥瘡など）、痛みに関する記載。`,
	},
	{
		Name: "ADL（日常生活動作）",
		Prompt: sectionHeader + `## 抽出する観点: ADL（日常生活動作）
移動、移乗、歩行、食事、嚥下、排泄（排尿・排便）、入浴、整容、更衣、起居動作。
それぞれ「自立」「一部介助」「全介助」等の区分と具体的な様子。`,
	},
	{
		Name: "IADL・生活環境",
		Prompt: sectionHeader + `## 抽出する観点: IADL・生活環境
調理、掃除、洗濯、買い物、金銭管理、服薬管理、交通機関の利用、
住環境（住宅の種類、段差、手すり、福祉用具）、日常の生活リズム。`,
	},
	{
		Name: "認知・精神・コミュニケーション",
		Prompt: sectionHeader + `## 抽出する観点: 認知・精神・コミュニケーション
認知機能（記憶、見当識、判断力）、意思伝達、視力・聴力、
精神状態（不安、抑うつ、BPSD等）、コミュニケーション上の配慮事項。`,
	},
	{
		Name: "社会参加・サービス利用状況",
		Prompt: sectionHeader + `## 抽出する観点: 社会参加・サービス利用状況
現在利用中の介護サービス・インフォーマルサービス、利用頻度、
社会参加・趣味・日中の過ごし方、本人・家族の意向や困りごと、特記事項。`,
	},
}
