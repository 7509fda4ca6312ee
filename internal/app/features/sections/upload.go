package sections

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/jsonutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// imageTypes maps accepted upload MIME types to the stored file extension.
// SVG is excluded: uploads are served from the API origin and SVG can carry
// script.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// multipart framing allowance on top of the file limit
const formOverhead = 64 << 10

// UploadImage handles POST /sections/{id}/images with a multipart "file"
// field. The image is stored under sections/<sectionId>/YYYY/MM/ and its URL
// appended to the section's images.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "UploadSectionImage"
	if h.files == nil {
		jsonutil.NotFound(w, "image uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.tooLarge(w)
			return
		}
		h.errLog.Respond(w, r, "upload image failed", apperr.Invalid(op, "file", "expected a multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.errLog.Respond(w, r, "upload image failed", apperr.Invalid(op, "file", "is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxUpload {
		h.tooLarge(w)
		return
	}

	contentType, ext, err := imageType(header, file)
	if err != nil {
		h.errLog.Respond(w, r, "upload image failed", apperr.Invalid(op, "file", err.Error()))
		return
	}

	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "upload image failed", err)
		return
	}

	now := time.Now().UTC()
	path := fmt.Sprintf("sections/%s/%04d/%02d/%s%s",
		sec.SectionID, now.Year(), int(now.Month()), uuid.New().String()[:8], ext)
	if err := h.files.Put(r.Context(), path, file, &storage.PutOptions{ContentType: contentType}); err != nil {
		h.errLog.Respond(w, r, "upload image failed", apperr.Unavailable(op, err))
		return
	}

	sec, err = h.store.AddSectionImage(r.Context(), sec.ID, h.files.URL(path))
	if err != nil {
		_ = h.files.Delete(r.Context(), path)
		h.errLog.Respond(w, r, "upload image failed", err)
		return
	}

	h.logger.Info("section image uploaded",
		zap.String("section_id", sec.SectionID),
		zap.String("path", path),
		zap.Int64("size", header.Size))
	jsonutil.Created(w, sec)
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	jsonutil.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", h.maxUpload))
}

// imageType checks the declared type against the allow-list. The content
// must also sniff as the declared type. file is rewound afterwards.
func imageType(header *multipart.FileHeader, file multipart.File) (string, string, error) {
	declared, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		return "", "", errors.New("missing or malformed content type")
	}
	ext, ok := imageTypes[declared]
	if !ok {
		return "", "", fmt.Errorf("type %s is not allowed; use jpeg, png, gif or webp", declared)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", errors.New("unreadable upload")
	}
	if sniffed := http.DetectContentType(head[:n]); sniffed != declared {
		return "", "", fmt.Errorf("content is %s, not %s", sniffed, declared)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", "", errors.New("unreadable upload")
	}
	return declared, ext, nil
}
