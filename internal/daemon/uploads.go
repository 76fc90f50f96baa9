package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/queue"
)

// sniffLength is how much of each upload is inspected for signatures.
const sniffLength = 3072

var validate = validator.New()

var dangerousNameParts = []string{"..", "/", "\\", "<", ">", ":", "\"", "|", "?", "*"}

var executableSignatures = [][]byte{
	{0x4d, 0x5a},             // PE
	{0x7f, 0x45, 0x4c, 0x46}, // ELF
	{0xfe, 0xed, 0xfa},       // Mach-O
	{0xcf, 0xfa, 0xed, 0xfe}, // Mach-O 64
}

// uploadRequest is the validated shape of a POST /transcribe form.
type uploadRequest struct {
	UserID string                  `validate:"omitempty,max=128,printascii"`
	Files  []*multipart.FileHeader `validate:"required,min=1,dive,required"`
}

// uploadError is a client error; its message is returned to the caller.
type uploadError struct {
	msg string
}

func (e *uploadError) Error() string { return e.msg }

func invalidUpload(format string, args ...any) error {
	return &uploadError{msg: fmt.Sprintf(format, args...)}
}

// isUploadError reports whether err should be answered with 400.
func isUploadError(err error) bool {
	var target *uploadError
	return errors.As(err, &target)
}

// stageUploads validates every file of the form and writes them into the
// upload directory. On any error, files already written are removed and
// nothing is returned.
func stageUploads(cfg *config.Config, form *multipart.Form) ([]queue.FileSource, string, error) {
	req := uploadRequest{}
	if form != nil {
		req.Files = form.File["files"]
		if values := form.Value["user_id"]; len(values) > 0 {
			req.UserID = strings.TrimSpace(values[0])
		}
	}
	if err := validate.Struct(req); err != nil {
		return nil, "", describeValidation(err)
	}
	if err := validate.Var(req.Files, fmt.Sprintf("max=%d", cfg.Upload.MaxFiles)); err != nil {
		return nil, "", invalidUpload("maximum %d files allowed", cfg.Upload.MaxFiles)
	}
	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create upload dir: %w", err)
	}

	sources := make([]queue.FileSource, 0, len(req.Files))
	written := make([]string, 0, len(req.Files))
	for _, header := range req.Files {
		path, err := stageUpload(cfg, header)
		if err != nil {
			_ = fileutil.RemoveAll(written...)
			return nil, "", err
		}
		written = append(written, path)
		sources = append(sources, queue.FileSource{Name: header.Filename, Path: path})
	}
	return sources, req.UserID, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalidUpload("invalid upload: %v", err)
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "Files":
		return invalidUpload("at least one file is required in field \"files\"")
	case "UserID":
		return invalidUpload("user_id must be printable ASCII of at most 128 characters")
	default:
		return invalidUpload("invalid field %s", fe.Field())
	}
}

func stageUpload(cfg *config.Config, header *multipart.FileHeader) (string, error) {
	name := header.Filename
	if err := checkFileName(cfg, name); err != nil {
		return "", err
	}
	if header.Size == 0 {
		return "", invalidUpload("%s: file is empty", name)
	}
	if limit := cfg.Upload.MaxFileBytes; limit > 0 && header.Size > limit {
		return "", invalidUpload("%s: file too large (%s, limit %s)",
			name, humanize.IBytes(uint64(header.Size)), humanize.IBytes(uint64(limit)))
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", name, err)
	}
	defer src.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload %s: %w", name, err)
	}
	head = head[:n]
	if err := checkContent(name, head); err != nil {
		return "", err
	}

	dst := fileutil.UploadPath(cfg.Paths.UploadDir, name)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	_, copyErr := io.Copy(out, io.MultiReader(bytes.NewReader(head), src))
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	return dst, nil
}

func checkFileName(cfg *config.Config, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalidUpload("filename is required")
	}
	for _, part := range dangerousNameParts {
		if strings.Contains(name, part) {
			return invalidUpload("%s: filename contains dangerous characters", name)
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(cfg.Upload.AllowedExtensions, ext) {
		return invalidUpload("%s: unsupported file extension %q (allowed: %s)",
			name, ext, strings.Join(cfg.Upload.AllowedExtensions, ", "))
	}
	return nil
}

// checkContent rejects executables and content whose detected type is
// neither audio nor video. Transport streams are exempt from type detection
// since they are frequently misidentified.
func checkContent(name string, head []byte) error {
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(head, sig) {
			return invalidUpload("%s: executable files are not allowed", name)
		}
	}
	if strings.EqualFold(filepath.Ext(name), ".ts") {
		return nil
	}
	detected := mimetype.Detect(head)
	kind := detected.String()
	if strings.HasPrefix(kind, "audio/") || strings.HasPrefix(kind, "video/") || detected.Is("application/octet-stream") {
		return nil
	}
	return invalidUpload("%s: content does not look like audio or video (detected %s)", name, kind)
}
