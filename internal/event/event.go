package event

// Kind classifies one inbound delivery after normalization.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMedia:
		return "media"
	default:
		return "unknown"
	}
}

// MediaReference carries every way the gateway told us to get at the bytes.
// At least one field is set on any reference produced by Normalize; a
// media-typed payload with nothing retrievable normalizes to KindUnknown
// instead.
type MediaReference struct {
	// InlineData is payload-embedded content, already base64-decoded.
	InlineData []byte
	// RemoteURL is a directly fetchable URL.
	RemoteURL string
	// GatewayMediaID is an opaque id requiring an authenticated
	// follow-up call against the gateway.
	GatewayMediaID string
}

func (r MediaReference) Empty() bool {
	return len(r.InlineData) == 0 && r.RemoteURL == "" && r.GatewayMediaID == ""
}

// CanonicalEvent is the normalized representation of one inbound webhook
// delivery, independent of any vendor's JSON shape. Exactly one of Text and
// Media is populated when Kind is KindText or KindMedia; both are zero when
// Kind is KindUnknown.
type CanonicalEvent struct {
	SenderID string
	Kind     Kind
	Text     string
	Media    *MediaReference
}
