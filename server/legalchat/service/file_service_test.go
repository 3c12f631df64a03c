package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/service"
)

func TestIsLegalDocument(t *testing.T) {
	tests := []struct {
		name, text string
		want       bool
	}{
		{"Mutual_NDA.pdf", "", true},
		{"scan.pdf", "This Employment Agreement is made between", true},
		{"privacy-policy.txt", "", true},
		{"holiday.jpg", "", false},
		{"agenda.txt", "standup agenda", false},
		{"notes.txt", "groceries and errands", false},
	}
	for _, tt := range tests {
		if got := service.IsLegalDocument(tt.name, tt.text); got != tt.want {
			t.Errorf("IsLegalDocument(%q, %q) = %v, want %v", tt.name, tt.text, got, tt.want)
		}
	}
}

func TestExtractText(t *testing.T) {
	if got := service.ExtractText("application/pdf", []byte("contract")); got != "" {
		t.Errorf("binary mime extracted %q", got)
	}
	if got := service.ExtractText("application/json", []byte(`{"terms":1}`)); got != `{"terms":1}` {
		t.Errorf("json extracted %q", got)
	}
	long := strings.Repeat("ü", 25000)
	if got := service.ExtractText("text/plain", []byte(long)); utf8.RuneCountInString(got) != 20000 {
		t.Errorf("extracted %d runes, want 20000", utf8.RuneCountInString(got))
	}
}

func TestUploadStoresLegalDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := []byte("This Lease Agreement is entered into by the parties.")

	f, err := h.files.Upload(ctx, "alice", "lease.txt", "text/plain; charset=utf-8", payload)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if f.MimeType != "text/plain" || f.Size != int64(len(payload)) || f.ExtractedText == "" || f.HasPreview {
		t.Errorf("file = %+v", f)
	}

	got, err := h.files.Get(ctx, "alice", f.ID)
	if err != nil {
		t.Fatal(err)
	}
	decoded, _ := base64.StdEncoding.DecodeString(got.Data)
	if !bytes.Equal(decoded, payload) {
		t.Errorf("round trip data = %q", decoded)
	}
	if _, err := h.files.Get(ctx, "bob", f.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign Get() error = %v, want ErrNotFound", err)
	}
	if _, _, err := h.files.Preview(ctx, "alice", f.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Preview() of text error = %v, want ErrNotFound", err)
	}

	list, _ := h.files.List(ctx, "alice")
	if len(list) != 1 {
		t.Errorf("List() = %d files", len(list))
	}
	if err := h.files.Delete(ctx, "alice", f.ID); err != nil {
		t.Fatal(err)
	}
	if h.blobs.Len() != 0 {
		t.Errorf("blob left after delete")
	}
}

func TestUploadRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.files.Upload(ctx, "alice", "cat.txt", "text/plain", []byte("meow")); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("non legal upload error = %v, want ErrBadRequest", err)
	}
	big := make([]byte, service.MaxUploadBytes+1)
	if _, err := h.files.Upload(ctx, "alice", "contract.pdf", "application/pdf", big); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("oversized upload error = %v, want ErrBadRequest", err)
	}
	if _, err := h.files.Upload(ctx, "alice", "contract.pdf", "application/pdf", nil); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("empty upload error = %v, want ErrBadRequest", err)
	}
	if h.blobs.Len() != 0 || h.store.FileCount() != 0 {
		t.Errorf("rejected uploads left state behind")
	}
}

func TestUploadImageRendersPreview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for x := 0; x < 800; x++ {
		for y := 0; y < 600; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	f, err := h.files.Upload(ctx, "alice", "signed-contract.png", "image/png", buf.Bytes())
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !f.HasPreview {
		t.Fatalf("image upload has no preview")
	}
	data, contentType, err := h.files.Preview(ctx, "alice", f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type = %s", contentType)
	}
	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("preview is not a jpeg: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 320 || b.Dy() != 320 {
		t.Errorf("preview is %dx%d, want 320x320", b.Dx(), b.Dy())
	}
}
