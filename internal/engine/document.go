package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/veridoc/veridoc/internal/forensics"
)

var imageMIMEs = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// DocumentFromFile builds a Document from a local file. Image files become a
// single-image document with no text; anything else is read as text.
func DocumentFromFile(path, documentType string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}

	doc := Document{
		FileName:     filepath.Base(path),
		DocumentType: documentType,
	}
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := imageMIMEs[ext]; ok {
		doc.Images = []forensics.ImageInput{{
			Data:     data,
			FileName: doc.FileName,
			MIME:     mime,
		}}
		return doc, nil
	}

	doc.Text = string(data)
	doc.PageCount = 1
	return doc, nil
}
