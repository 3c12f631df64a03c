package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
)

const (
	MaxUploadBytes     = 10 << 20
	maxExtractedRunes  = 20000
	previewSize        = 320
	defaultUploadMime  = "application/octet-stream"
	previewContentType = "image/jpeg"
)

var legalKeywords = []string{
	"contract", "agreement", "policy", "compliance", "terms", "privacy", "nda", "gdpr",
	"license", "licence", "incorporation", "bylaws", "trademark", "patent", "copyright",
	"employment", "lease", "legal", "regulation", "regulatory", "consent", "liability",
	"shareholder", "equity", "founder", "indemnity", "warranty", "confidential", "clause",
	"jurisdiction", "intellectual property", "data protection", "partnership",
}

type FileService struct {
	files FileStore
	blobs BlobStore
}

func NewFileService(files FileStore, blobs BlobStore) *FileService {
	return &FileService{files: files, blobs: blobs}
}

func (s *FileService) Upload(ctx context.Context, ownerID, name, mimeType string, data []byte) (domain.File, error) {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return domain.File{}, fmt.Errorf("file name is required: %w", domain.ErrBadRequest)
	}
	if len(data) == 0 {
		return domain.File{}, fmt.Errorf("file is empty: %w", domain.ErrBadRequest)
	}
	if len(data) > MaxUploadBytes {
		return domain.File{}, fmt.Errorf("file exceeds %d bytes: %w", MaxUploadBytes, domain.ErrBadRequest)
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = defaultUploadMime
	}

	extracted := ExtractText(mimeType, data)
	if !IsLegalDocument(name, extracted) {
		return domain.File{}, fmt.Errorf("%s does not look like a legal or compliance document: %w", name, domain.ErrBadRequest)
	}

	f := domain.File{
		ID:            uuid.NewString(),
		OwnerUserID:   ownerID,
		OriginalName:  name,
		MimeType:      mimeType,
		Size:          int64(len(data)),
		ExtractedText: extracted,
	}
	f.ObjectKey = objectKey(ownerID, f.ID)
	if err := s.blobs.Put(ctx, f.ObjectKey, mimeType, data); err != nil {
		return domain.File{}, fmt.Errorf("store file %s: %w", f.ID, err)
	}

	if strings.HasPrefix(mimeType, "image/") {
		if preview, err := RenderPreview(data); err != nil {
			commonlog.Warnf("event=file_upload action=render_preview status=failed file_id=%s error=%v", f.ID, err)
		} else {
			key := previewKey(ownerID, f.ID)
			if err := s.blobs.Put(ctx, key, previewContentType, preview); err != nil {
				commonlog.Warnf("event=file_upload action=store_preview status=failed file_id=%s error=%v", f.ID, err)
			} else {
				f.PreviewKey = key
			}
		}
	}

	saved, err := s.files.CreateFile(ctx, f)
	if err != nil {
		_ = s.blobs.Remove(ctx, f.ObjectKey)
		_ = s.blobs.Remove(ctx, f.PreviewKey)
		return domain.File{}, fmt.Errorf("create file %s: %w", f.ID, err)
	}
	commonlog.Infof("event=file_upload action=create status=ok file_id=%s user_id=%s size=%d preview=%t", saved.ID, ownerID, saved.Size, saved.HasPreview)
	return saved, nil
}

func (s *FileService) owned(ctx context.Context, ownerID, fileID string) (domain.File, error) {
	f, err := s.files.GetFile(ctx, strings.TrimSpace(fileID))
	if err != nil {
		return domain.File{}, err
	}
	if f.OwnerUserID != ownerID {
		return domain.File{}, domain.ErrNotFound
	}
	return f, nil
}

func (s *FileService) Get(ctx context.Context, ownerID, fileID string) (domain.File, error) {
	f, err := s.owned(ctx, ownerID, fileID)
	if err != nil {
		return domain.File{}, err
	}
	data, err := s.blobs.Get(ctx, f.ObjectKey)
	if err != nil {
		return domain.File{}, fmt.Errorf("read file %s: %w", f.ID, err)
	}
	f.Data = base64.StdEncoding.EncodeToString(data)
	return f, nil
}

func (s *FileService) Preview(ctx context.Context, ownerID, fileID string) ([]byte, string, error) {
	f, err := s.owned(ctx, ownerID, fileID)
	if err != nil {
		return nil, "", err
	}
	if f.PreviewKey == "" {
		return nil, "", domain.ErrNotFound
	}
	data, err := s.blobs.Get(ctx, f.PreviewKey)
	if err != nil {
		return nil, "", fmt.Errorf("read preview %s: %w", f.ID, err)
	}
	return data, previewContentType, nil
}

func (s *FileService) List(ctx context.Context, ownerID string) ([]domain.File, error) {
	return s.files.ListFiles(ctx, ownerID)
}

func (s *FileService) Delete(ctx context.Context, ownerID, fileID string) error {
	f, err := s.owned(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	return removeFile(ctx, s.files, s.blobs, f)
}

// IsLegalDocument accepts a file when its name or text mentions a legal or
// compliance keyword. Keywords of four letters or fewer must match a whole word.
func IsLegalDocument(name, text string) bool {
	haystack := strings.ToLower(name + " " + text)
	words := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(haystack, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		words[w] = struct{}{}
	}
	for _, keyword := range legalKeywords {
		if len(keyword) <= 4 {
			if _, ok := words[keyword]; ok {
				return true
			}
			continue
		}
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

func ExtractText(mimeType string, data []byte) string {
	if !isTextLike(mimeType) {
		return ""
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	if utf8.RuneCountInString(text) > maxExtractedRunes {
		text = string([]rune(text)[:maxExtractedRunes])
	}
	return strings.TrimSpace(text)
}

func isTextLike(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/json", mimeType == "application/xml":
		return true
	default:
		return false
	}
}

func RenderPreview(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Thumbnail(img, previewSize, previewSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func removeFile(ctx context.Context, files FileStore, blobs BlobStore, f domain.File) error {
	if err := files.DeleteFile(ctx, f.OwnerUserID, f.ID); err != nil {
		return err
	}
	if err := blobs.Remove(ctx, f.ObjectKey); err != nil {
		commonlog.Warnf("event=file_delete action=remove_blob status=failed file_id=%s error=%v", f.ID, err)
	}
	if f.PreviewKey != "" {
		if err := blobs.Remove(ctx, f.PreviewKey); err != nil {
			commonlog.Warnf("event=file_delete action=remove_preview status=failed file_id=%s error=%v", f.ID, err)
		}
	}
	return nil
}

func objectKey(ownerID, fileID string) string {
	return "files/" + ownerID + "/" + fileID
}

func previewKey(ownerID, fileID string) string {
	return "previews/" + ownerID + "/" + fileID + ".jpg"
}
