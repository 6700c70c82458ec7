package event

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTextShapes(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string]interface{}
		wantText   string
		wantSender string
	}{
		{
			name:       "root body",
			raw:        map[string]interface{}{"from": "5513999990000@c.us", "body": "lista"},
			wantText:   "lista",
			wantSender: "5513999990000@c.us",
		},
		{
			name:       "root text field",
			raw:        map[string]interface{}{"sender": "5511888880000", "text": "  oi  "},
			wantText:   "oi",
			wantSender: "5511888880000",
		},
		{
			name: "nested data.body",
			raw: map[string]interface{}{
				"data": map[string]interface{}{"from": "5521777770000", "body": "!resetar"},
			},
			wantText:   "!resetar",
			wantSender: "5521777770000",
		},
		{
			name: "message.conversation",
			raw: map[string]interface{}{
				"from":    "5531666660000",
				"message": map[string]interface{}{"conversation": "lista"},
			},
			wantText:   "lista",
			wantSender: "5531666660000",
		},
		{
			name: "messages array",
			raw: map[string]interface{}{
				"messages": []interface{}{
					map[string]interface{}{"from": "5541555550000", "body": "Lista"},
				},
			},
			wantText:   "Lista",
			wantSender: "5541555550000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Normalize(tt.raw)
			assert.Equal(t, KindText, ev.Kind)
			assert.Equal(t, tt.wantText, ev.Text)
			assert.Equal(t, tt.wantSender, ev.SenderID)
			assert.Nil(t, ev.Media)
		})
	}
}

func TestNormalizePreservesTextCase(t *testing.T) {
	// Command matching is case-insensitive downstream; the normalizer must
	// keep the raw casing for logging.
	ev := Normalize(map[string]interface{}{"from": "x", "body": "LISTA"})
	assert.Equal(t, "LISTA", ev.Text)
}

func TestNormalizeMediaShapes(t *testing.T) {
	inline := []byte{0xff, 0xd8, 0xff, 0xe0}

	tests := []struct {
		name  string
		raw   map[string]interface{}
		check func(t *testing.T, ref *MediaReference)
	}{
		{
			name: "inline base64",
			raw: map[string]interface{}{
				"from":   "5513999990000",
				"type":   "image",
				"base64": base64.StdEncoding.EncodeToString(inline),
			},
			check: func(t *testing.T, ref *MediaReference) {
				assert.Equal(t, inline, ref.InlineData)
			},
		},
		{
			name: "remote url at root",
			raw: map[string]interface{}{
				"from":  "5513999990000",
				"media": "https://cdn.example.com/receipt.jpg",
			},
			check: func(t *testing.T, ref *MediaReference) {
				assert.Equal(t, "https://cdn.example.com/receipt.jpg", ref.RemoteURL)
			},
		},
		{
			name: "remote url nested under data",
			raw: map[string]interface{}{
				"data": map[string]interface{}{
					"from": "5513999990000",
					"url":  "https://cdn.example.com/receipt.png",
				},
			},
			check: func(t *testing.T, ref *MediaReference) {
				assert.Equal(t, "https://cdn.example.com/receipt.png", ref.RemoteURL)
			},
		},
		{
			name: "opaque gateway media id",
			raw: map[string]interface{}{
				"from":    "5513999990000",
				"type":    "image",
				"mediaId": "wamid.HBgL",
			},
			check: func(t *testing.T, ref *MediaReference) {
				assert.Equal(t, "wamid.HBgL", ref.GatewayMediaID)
			},
		},
		{
			name: "document type hint with url",
			raw: map[string]interface{}{
				"from":        "5513999990000",
				"messageType": "document",
				"url":         "https://cdn.example.com/receipt.pdf",
			},
			check: func(t *testing.T, ref *MediaReference) {
				assert.Equal(t, "https://cdn.example.com/receipt.pdf", ref.RemoteURL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Normalize(tt.raw)
			require.Equal(t, KindMedia, ev.Kind)
			require.NotNil(t, ev.Media)
			assert.False(t, ev.Media.Empty())
			assert.Empty(t, ev.Text)
			tt.check(t, ev.Media)
		})
	}
}

func TestNormalizeMediaWinsOverCaption(t *testing.T) {
	ev := Normalize(map[string]interface{}{
		"from":  "5513999990000",
		"body":  "segue o comprovante",
		"media": "https://cdn.example.com/receipt.jpg",
	})
	assert.Equal(t, KindMedia, ev.Kind)
	assert.Empty(t, ev.Text)
}

func TestNormalizeUnknownShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{name: "nil payload", raw: nil},
		{name: "empty payload", raw: map[string]interface{}{}},
		{name: "unrelated fields", raw: map[string]interface{}{"ack": 2.0, "instance": "x"}},
		{name: "whitespace only text", raw: map[string]interface{}{"body": "   "}},
		{
			// Typed as image but nothing retrievable: a normalization
			// failure, not a media event.
			name: "media type without reference",
			raw:  map[string]interface{}{"from": "x", "type": "image"},
		},
		{
			name: "inline base64 that does not decode",
			raw:  map[string]interface{}{"from": "x", "base64": "%%%not-base64%%%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Normalize(tt.raw)
			assert.Equal(t, KindUnknown, ev.Kind)
			assert.Empty(t, ev.Text)
			assert.Nil(t, ev.Media)
		})
	}
}

func TestNormalizeNeverPanics(t *testing.T) {
	// Hostile nesting: wrong types everywhere.
	raw := map[string]interface{}{
		"data":     "not a map",
		"messages": []interface{}{"not a map"},
		"message":  42.0,
		"media":    true,
	}
	assert.NotPanics(t, func() { Normalize(raw) })
}
