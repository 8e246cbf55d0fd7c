package document

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Seal returns the transport encoding of a document together with its
// integrity hash. The hash is the lowercase hex SHA-256 of the exact bytes,
// the transport form is standard base64 of the same bytes. Reporting sends
// both so the receiver can verify the payload it decodes.
func Seal(doc *Document) (transport, hash string) {
	sum := sha256.Sum256(doc.Bytes)
	return base64.StdEncoding.EncodeToString(doc.Bytes), hex.EncodeToString(sum[:])
}
