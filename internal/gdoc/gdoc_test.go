package gdoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocID(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
		ok   bool
	}{
		{
			name: "edit link",
			link: "https://docs.google.com/document/d/1AbC-d_EF23/edit",
			want: "1AbC-d_EF23",
			ok:   true,
		},
		{
			name: "bare link",
			link: "https://docs.google.com/document/d/xyz789",
			want: "xyz789",
			ok:   true,
		},
		{
			name: "not a document link",
			link: "https://example.com/page",
			ok:   false,
		},
		{
			name: "empty",
			link: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDocID(tt.link)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

const sampleDocJSON = `{
	"title": "My Article",
	"body": {"content": [
		{"paragraph": {
			"paragraphStyle": {"namedStyleType": "HEADING_1"},
			"elements": [{"textRun": {"content": "My Article\n", "textStyle": {}}}]
		}},
		{"paragraph": {
			"paragraphStyle": {"namedStyleType": "NORMAL_TEXT"},
			"elements": [
				{"textRun": {"content": "Hello ", "textStyle": {"bold": true}}},
				{"textRun": {"content": "world", "textStyle": {"link": {"url": "https://example.com"}}}}
			]
		}},
		{"paragraph": {
			"paragraphStyle": {"namedStyleType": "NORMAL_TEXT"},
			"bullet": {"listId": "kix.numbered"},
			"elements": [{"textRun": {"content": "step one\n", "textStyle": {}}}]
		}},
		{"paragraph": {
			"paragraphStyle": {"namedStyleType": "NORMAL_TEXT"},
			"bullet": {"listId": "kix.bullets"},
			"elements": [{"textRun": {"content": "loose item\n", "textStyle": {}}}]
		}}
	]},
	"lists": {
		"kix.numbered": {"listProperties": {"nestingLevels": [{"glyphType": "DECIMAL"}]}},
		"kix.bullets": {"listProperties": {"nestingLevels": [{"glyphType": "GLYPH_TYPE_UNSPECIFIED"}]}}
	}
}`

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/documents/doc123", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleDocJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", 5*time.Second)

	doc, err := client.Fetch(context.Background(), "doc123")
	require.NoError(t, err)

	assert.Equal(t, "My Article", doc.Title)
	require.Len(t, doc.Blocks, 4)

	assert.Equal(t, StyleHeading1, doc.Blocks[0].Style)
	assert.Equal(t, ListNone, doc.Blocks[0].List)

	require.Len(t, doc.Blocks[1].Runs, 2)
	assert.True(t, doc.Blocks[1].Runs[0].Bold)
	assert.Equal(t, "https://example.com", doc.Blocks[1].Runs[1].LinkURL)

	assert.Equal(t, ListOrdered, doc.Blocks[2].List)
	assert.Equal(t, ListUnordered, doc.Blocks[3].List)
}

func TestClientFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)

	_, err := client.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}
