package domain

import (
	"encoding/base64"
	"testing"
)

func TestResolveMimeTypeExplicitWins(t *testing.T) {
	a := FileAttachment{Filename: "report.bin", MimeType: "application/pdf"}
	if got := a.ResolveMimeType(); got != "application/pdf" {
		t.Fatalf("expected explicit mime type, got %s", got)
	}
}

func TestResolveMimeTypeSniffsContent(t *testing.T) {
	// Minimal PNG header.
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	a := FileAttachment{
		Filename:   "photo",
		Base64Data: base64.StdEncoding.EncodeToString(png),
	}
	if got := a.ResolveMimeType(); got != "image/png" {
		t.Fatalf("expected image/png from sniffing, got %s", got)
	}
	if !a.IsImage() {
		t.Fatal("expected IsImage for png content")
	}
}

func TestResolveMimeTypeExtensionFallback(t *testing.T) {
	a := FileAttachment{Filename: "labs.XLSX"}
	want := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if got := a.ResolveMimeType(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	unknown := FileAttachment{Filename: "mystery.zzz"}
	if got := unknown.ResolveMimeType(); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback, got %s", got)
	}
}

func TestDataURL(t *testing.T) {
	a := FileAttachment{Filename: "notes.txt", MimeType: "text/plain", Base64Data: "aGVsbG8="}
	if got := a.DataURL(); got != "data:text/plain;base64,aGVsbG8=" {
		t.Fatalf("unexpected data url: %s", got)
	}
}
