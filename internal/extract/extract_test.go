package extract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FencedPayloadInProse(t *testing.T) {
	raw := "Sure! Here is the vision you asked for.\n\n```json\n{\"visionText\": \"A login service\", \"score\": 3, \"tags\": [\"auth\", \"web\"]}\n```\n\nLet me know if you need changes {or not}."

	got, err := Extract(raw)
	require.NoError(t, err)

	want := map[string]any{
		"visionText": "A login service",
		"score":      float64(3),
		"tags":       []any{"auth", "web"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_FencedWinsOverBraces(t *testing.T) {
	raw := "{not json} then ```json\n{\"a\": 1}\n``` and {more}"

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestExtract_BraceFallback(t *testing.T) {
	raw := `The structure is {"rootFolder": {"name": "app"}} as requested.`

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"rootFolder": map[string]any{"name": "app"},
	}, got)
}

func TestExtract_FenceInsidePayload(t *testing.T) {
	raw := "Here you go:\n```json\n{\"example\": \"```go\nfmt.Println()\n```\", \"n\": 1}\n```\nDone."

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"example": "```go fmt.Println() ```",
		"n":       float64(1),
	}, got)
}

func TestFencedStrategy_Find(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "plain", raw: "```json\n{\"a\": 1}\n```", want: "{\"a\": 1}\n", wantOK: true},
		{name: "inline", raw: "```json {\"a\": 1}```", want: "{\"a\": 1}", wantOK: true},
		{name: "other info string", raw: "```jsonc\n{\"a\": 1}\n```", wantOK: false},
		{name: "unclosed", raw: "```json\n{\"a\": 1}", wantOK: false},
		{name: "malformed closes at nearest fence", raw: "```json\n{\"a\": }\n``` and ```", want: "{\"a\": }\n", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FencedStrategy().Find(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_OtherInfoStringFallsBackToBraces(t *testing.T) {
	got, err := Extract("```jsonc\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestExtract_RepairsWhitespaceAndSpuriousEscapes(t *testing.T) {
	raw := "{\n\t\"visionText\": \"Build a \\login flow\nwith   sessions\",\r\n\t\"path\": \"src\\/app\"\n}"

	var out struct {
		VisionText string `json:"visionText"`
		Path       string `json:"path"`
	}
	require.NoError(t, Decode(raw, &out))
	assert.Equal(t, "Build a login flow with sessions", out.VisionText)
	assert.Equal(t, "src/app", out.Path)
}

func TestExtract_KeepsEscapedBackslash(t *testing.T) {
	raw := `{"path": "C:\\dir\\file"}`

	var out struct {
		Path string `json:"path"`
	}
	require.NoError(t, Decode(raw, &out))
	assert.Equal(t, `C:\dir\file`, out.Path)
}

func TestExtract_NoPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose only", "I could not produce a structure for this."},
		{"only opening brace", "here { it starts"},
		{"closing before opening", "} backwards {"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw)
			require.Error(t, err)

			var ee *ExtractionError
			require.True(t, errors.As(err, &ee))
			assert.ErrorIs(t, err, ErrNoPayload)
			assert.Equal(t, tt.raw, ee.Raw)
		})
	}
}

func TestExtract_MalformedPayloadCarriesDiagnostics(t *testing.T) {
	raw := "result: {\"a\": 1,,\n \"b\": }"

	_, err := Extract(raw)
	require.Error(t, err)

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, raw, ee.Raw)
	assert.Equal(t, `{"a": 1,, "b": }`, ee.Candidate)
	assert.Error(t, ee.Err)
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"newlines and tabs", "{\n\t\"a\":\r\n1}", `{ "a": 1}`},
		{"whitespace runs", `{"a":     1}`, `{"a": 1}`},
		{"spurious escape dropped", `{"a": "\x\q"}`, `{"a": "xq"}`},
		{"valid escapes kept", `{"a": "\"\\\/\b\f\n\r\t\u00e9"}`, `{"a": "\"\\\/\b\f\n\r\t\u00e9"}`},
		{"escaped backslash before letter", `{"a": "\\d"}`, `{"a": "\\d"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Repair(tt.in))
		})
	}
}

type firstLineStrategy struct{}

func (firstLineStrategy) Name() string { return "first-line" }

func (firstLineStrategy) Find(raw string) (string, bool) {
	return `{"custom": true}`, true
}

func TestExtractor_CustomStrategies(t *testing.T) {
	e := New(WithStrategies(firstLineStrategy{}, BraceStrategy()))

	got, err := e.Extract(`{"ignored": true}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"custom": true}, got)
}
