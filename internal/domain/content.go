package domain

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// fallback MIME types by extension for when content sniffing is inconclusive.
var extensionTypes = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ResolveMimeType returns the attachment's MIME type, sniffing the decoded
// content when the client did not supply one. Unrecognized content falls back
// to the filename extension, then to application/octet-stream.
func (a FileAttachment) ResolveMimeType() string {
	if a.MimeType != "" {
		return a.MimeType
	}

	if data, err := base64.StdEncoding.DecodeString(a.Base64Data); err == nil && len(data) > 0 {
		if detected := mimetype.Detect(data); detected.String() != "application/octet-stream" {
			return detected.String()
		}
	}

	if idx := strings.LastIndex(a.Filename, "."); idx >= 0 {
		ext := strings.ToLower(a.Filename[idx+1:])
		if mt, ok := extensionTypes[ext]; ok {
			return mt
		}
	}

	return "application/octet-stream"
}

// IsImage reports whether the attachment should be sent as an image part.
func (a FileAttachment) IsImage() bool {
	return strings.HasPrefix(a.ResolveMimeType(), "image/")
}

// DataURL renders the attachment as a data: URL for the upstream API.
func (a FileAttachment) DataURL() string {
	return "data:" + a.ResolveMimeType() + ";base64," + a.Base64Data
}
