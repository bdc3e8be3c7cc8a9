package report

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/reportal/core"
)

const (
	MaxUploadSize = 5 * 1024 * 1024
	uploadDir     = "reports"
	fileField     = "report_file"
)

var (
	AllowedExtensions = []string{".pdf", ".docx", ".xlsx"}

	contentTypes = map[string]string{
		".pdf":  "application/pdf",
		".doc":  "application/msword",
		".docx": "application/msword",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".txt":  "text/plain",
	}
)

func fileError(msg string) error {
	return core.NewFieldError(fileField, msg)
}

// ValidateUpload checks the extension (case-insensitive) and the size of an uploaded report file.
func ValidateUpload(up *Upload) error {
	if up == nil || up.Content == nil {
		return fileError("this field is required")
	}
	ext := strings.ToLower(path.Ext(up.Filename))
	if !core.ContainsString(AllowedExtensions, ext) {
		return fileError("only PDF, DOCX and XLSX files are allowed")
	}
	if up.Size <= 0 {
		return fileError("the submitted file is empty")
	}
	if up.Size > MaxUploadSize {
		return fileError(fmt.Sprintf("file size must be less than 5MB. Current size: %.2fMB", float64(up.Size)/(1024*1024)))
	}
	return nil
}

// StorageKey generates a unique storage key keeping the (lowered) extension of filename.
func StorageKey(filename string) string {
	return path.Join(uploadDir, uuid.NewString()+strings.ToLower(path.Ext(filename)))
}

// ContentType returns the content type a file is viewed inline with.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func storedBase(key string) string {
	if key == "" {
		return ""
	}
	return path.Base(key)
}
