package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/camforge/camforge/pkg/models"
)

// DesignHash returns the canonical structural hash used for candidate
// de-duplication. encoding/json marshals map keys in sorted order at every
// nesting level, so two structurally identical documents hash identically
// regardless of construction order.
func DesignHash(design models.Document) string {
	payload, err := json.Marshal(design)
	if err != nil {
		// Documents are plain JSON maps; marshalling only fails for values
		// that could never have crossed the API boundary. Hash the error so
		// such a candidate still dedupes against itself.
		payload = []byte("unmarshalable:" + err.Error())
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:])
}
