package jsonrepair

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence with prose", "説明です。\n```json\n{\"a\": 1}\n```\n以上。", `{"a": 1}`},
		{"no fence", `  {"a": 1}  `, `{"a": 1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFences(tc.in))
		})
	}
}

func TestRepairAndParseValid(t *testing.T) {
	got, err := RepairAndParse(`{"氏名": "田中太郎", "年齢": 82}`)
	require.NoError(t, err)
	assert.Equal(t, "田中太郎", got["氏名"])
	assert.Equal(t, float64(82), got["年齢"])
}

func TestRepairAndParseTruncated(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"unterminated string", `{"氏名": "田中太郎", "住所": "那覇市首里`},
		{"missing brace", `{"氏名": "田中太郎"`},
		{"nested truncation", `{"氏名": "田中太郎", "家族": {"続柄": "長男`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RepairAndParse(tc.in)
			require.NoError(t, err)
			assert.Contains(t, got, "氏名", "keys before the cut must survive")
		})
	}
}

// Serializing an object, truncating at a string boundary, and repairing must
// recover every key complete before the truncation point.
func TestRepairRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"a": "first",
		"b": "second",
		"c": "third",
	}
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	// Cut inside the value of the final key.
	text := string(raw)
	cut := strings.LastIndex(text, `"`)
	truncated := text[:cut]

	got, err := RepairAndParse(truncated)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), 2)
	for k := range got {
		assert.Contains(t, original, k)
	}
}

func TestRepairAndParseHopeless(t *testing.T) {
	_, err := RepairAndParse("これはJSONではありません")
	require.Error(t, err)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestMergeLastWriteWins(t *testing.T) {
	acc := map[string]interface{}{}
	Merge(acc, map[string]interface{}{"a": "1", "b": "from-first"})
	Merge(acc, map[string]interface{}{"b": "from-second", "c": "3"})

	assert.Equal(t, "1", acc["a"])
	assert.Equal(t, "from-second", acc["b"])
	assert.Equal(t, "3", acc["c"])
	assert.Len(t, acc, 3)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "要介護2", Stringify("要介護2"))
	assert.Equal(t, "82", Stringify(float64(82)))
	assert.Equal(t, "82.5", Stringify(float64(82.5)))
	assert.Equal(t, "true", Stringify(true))
	assert.JSONEq(t, `{"x":"y"}`, Stringify(map[string]interface{}{"x": "y"}))
}
