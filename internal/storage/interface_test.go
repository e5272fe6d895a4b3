package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/fjmerc/reactshare/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fallback models.MediaKind
		wantKind models.MediaKind
		wantExt  string
	}{
		{name: "png", data: pngHeader, fallback: models.MediaKindVideo, wantKind: models.MediaKindImage, wantExt: ".png"},
		{name: "plain text falls back", data: []byte("hello world"), fallback: models.MediaKindVideo, wantKind: models.MediaKindVideo, wantExt: ".bin"},
		{name: "binary noise falls back", data: []byte{0x01, 0x02, 0x03}, fallback: models.MediaKindImage, wantKind: models.MediaKindImage, wantExt: ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ext := DetectKind(tt.data, tt.fallback)
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestNewKey(t *testing.T) {
	a := NewKey(models.MediaKindVideo, ".webm")
	b := NewKey(models.MediaKindVideo, ".webm")

	if a == b {
		t.Errorf("NewKey returned the same key twice: %q", a)
	}
	if !strings.HasPrefix(a, "video/") || !strings.HasSuffix(a, ".webm") {
		t.Errorf("NewKey = %q, want video/<uuid>.webm", a)
	}
	// "video/" + 36 char uuid + ".webm"
	if len(a) != 6+36+5 {
		t.Errorf("NewKey length = %d, want %d", len(a), 6+36+5)
	}
}

func TestPrepareUpload(t *testing.T) {
	ref, err := PrepareUpload(pngHeader, models.MediaKindVideo)
	if err != nil {
		t.Fatalf("PrepareUpload: %v", err)
	}
	if ref.Kind != models.MediaKindImage || !strings.HasPrefix(ref.Key, "image/") {
		t.Errorf("ref = %+v, want an image key", ref)
	}

	for name, tc := range map[string]struct {
		data []byte
		kind models.MediaKind
	}{
		"empty":        {data: nil, kind: models.MediaKindVideo},
		"invalid kind": {data: []byte("x"), kind: "audio"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := PrepareUpload(tc.data, tc.kind)
			if !errors.Is(err, ErrUploadFailed) {
				t.Errorf("err = %v, want ErrUploadFailed", err)
			}
			var serr *StorageError
			if !errors.As(err, &serr) || serr.Op != "Upload" {
				t.Errorf("err = %v, want a *StorageError for Upload", err)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")

	err := NewStorageError("Delete", "video/a.webm", cause)
	if err.Error() != "Delete video/a.webm: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("StorageError should unwrap to its cause")
	}

	withMsg := NewStorageErrorWithMessage("HealthCheck", "", cause, "bucket not accessible")
	if withMsg.Error() != "bucket not accessible" {
		t.Errorf("Error() = %q, want the custom message", withMsg.Error())
	}

	noPath := NewStorageError("Upload", "", cause)
	if noPath.Error() != "Upload: disk full" {
		t.Errorf("Error() = %q", noPath.Error())
	}
}

func TestUploadError(t *testing.T) {
	serr := NewStorageError("Upload", "k", errors.New("timeout"))
	err := UploadError(serr)

	if !errors.Is(err, ErrUploadFailed) {
		t.Error("UploadError should match ErrUploadFailed")
	}
	var got *StorageError
	if !errors.As(err, &got) || got != serr {
		t.Error("UploadError should expose the StorageError")
	}
}
