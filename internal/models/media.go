package models

// MediaKind is the resource kind of an externally stored media object
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// Valid reports whether k is a supported media kind
func (k MediaKind) Valid() bool {
	return k == MediaKindImage || k == MediaKindVideo
}

// MediaReference locates an object in the external media store.
// It is stored as a key/kind column pair on the owning row and never shared between rows.
type MediaReference struct {
	Key  string    `json:"key"`
	Kind MediaKind `json:"kind"`
}

// NewMediaReference builds a reference from nullable key/kind columns.
// Returns nil when the key is empty.
func NewMediaReference(key, kind string) *MediaReference {
	if key == "" {
		return nil
	}
	return &MediaReference{Key: key, Kind: MediaKind(kind)}
}

// KeyOrEmpty returns the key of a possibly nil reference
func (m *MediaReference) KeyOrEmpty() string {
	if m == nil {
		return ""
	}
	return m.Key
}

// KindOrEmpty returns the kind of a possibly nil reference
func (m *MediaReference) KindOrEmpty() string {
	if m == nil {
		return ""
	}
	return string(m.Kind)
}
