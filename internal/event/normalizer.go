package event

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Candidate extraction paths, most specific and most common first. Gateways
// disagree about where the real message lives (root, data.*, message.*,
// messages[0].*), so each field is probed through an ordered rule list and
// the first hit wins.
var (
	senderPaths = []string{
		"from",
		"sender",
		"data.from",
		"messages.0.from",
		"to",
	}

	textPaths = []string{
		"body",
		"text",
		"message",
		"message.body",
		"message.conversation",
		"data.body",
		"data.text",
		"payload.body",
		"messages.0.body",
		"messages.0.text",
	}

	inlinePaths = []string{
		"base64",
		"image.base64",
		"data.base64",
		"media.data",
	}

	urlPaths = []string{
		"media",
		"picture",
		"image",
		"data.media",
		"data.image",
		"data.url",
		"url",
	}

	mediaIDPaths = []string{
		"mediaId",
		"media_id",
		"data.mediaId",
		"data.media_id",
		"messages.0.image.id",
	}

	typePaths = []string{
		"type",
		"messageType",
		"msgType",
		"data.type",
		"messages.0.type",
	}
)

// mediaTypeHints is the "image/document family" of explicit type values.
var mediaTypeHints = []string{"image", "photo", "picture", "document", "sticker"}

// Normalize maps an arbitrary gateway payload into a CanonicalEvent. It
// never fails: payloads matching no known shape come back as KindUnknown so
// a malformed delivery can never crash the service or block the ledger.
//
// Media classification wins over text so that a receipt photo with a caption
// is still treated as a receipt.
func Normalize(raw map[string]interface{}) CanonicalEvent {
	if raw == nil {
		return CanonicalEvent{Kind: KindUnknown}
	}

	ev := CanonicalEvent{
		SenderID: firstString(raw, senderPaths),
	}

	ref := extractMediaReference(raw)
	mediaTyped := hasMediaTypeHint(raw)

	if ref != nil || mediaTyped {
		if ref == nil {
			// Media-typed payload with nothing retrievable is a
			// normalization failure, not a valid media event.
			ev.Kind = KindUnknown
			return ev
		}
		ev.Kind = KindMedia
		ev.Media = ref
		return ev
	}

	if text := strings.TrimSpace(firstString(raw, textPaths)); text != "" {
		ev.Kind = KindText
		ev.Text = text
		return ev
	}

	ev.Kind = KindUnknown
	return ev
}

func extractMediaReference(raw map[string]interface{}) *MediaReference {
	ref := MediaReference{
		RemoteURL:      firstString(raw, urlPaths),
		GatewayMediaID: firstString(raw, mediaIDPaths),
	}

	if encoded := firstString(raw, inlinePaths); encoded != "" {
		if data, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(data) > 0 {
			ref.InlineData = data
		}
	}

	if ref.Empty() {
		return nil
	}
	return &ref
}

func hasMediaTypeHint(raw map[string]interface{}) bool {
	for _, path := range typePaths {
		hint, ok := lookupString(raw, path)
		if !ok {
			continue
		}
		hint = strings.ToLower(hint)
		for _, family := range mediaTypeHints {
			if strings.Contains(hint, family) {
				return true
			}
		}
	}
	return false
}

func firstString(raw map[string]interface{}, paths []string) string {
	for _, path := range paths {
		if s, ok := lookupString(raw, path); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				return s
			}
		}
	}
	return ""
}

func lookupString(raw map[string]interface{}, path string) (string, bool) {
	value, ok := lookup(raw, path)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// lookup walks a dotted path through nested maps and slices; numeric
// segments index into JSON arrays ("messages.0.body").
func lookup(raw map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = raw

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}
