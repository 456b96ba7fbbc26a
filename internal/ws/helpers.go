package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// parseReplyTo accepts both wire shapes for a reply reference: a bare message
// id string, or an object carrying the id.
func parseReplyTo(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		return ref.ID
	}
	return ""
}
