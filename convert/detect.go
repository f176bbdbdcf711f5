package convert

import (
	"io"
	"os"

	"github.com/h2non/filetype"
)

// isBookFile sniffs file content for the EPUB signature, the stored mimetype
// entry at the head of the archive. Extension alone is not trusted.
func isBookFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// enough for the zip local header plus the mimetype entry
	buf := make([]byte, 128)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return filetype.Is(buf[:n], "epub"), nil
}
