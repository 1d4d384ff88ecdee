package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const (
	catalogIDPrefix = "game:"
	fileIDPrefix    = "file:"
)

// CatalogDocumentID is the document ID of a catalog item's reference text.
func CatalogDocumentID(itemID int64) string {
	return catalogIDPrefix + strconv.FormatInt(itemID, 10)
}

// FileDocumentID returns a stable document ID for an absolute file path.
func FileDocumentID(absolutePath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return fileIDPrefix + hex.EncodeToString(sum[:])
}
