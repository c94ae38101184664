package archive

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

const sidecarSuffix = "_to_text.txt"

// DiskLocator finds the attachment files the archiver stored for a message
// under <Root>/<thread id>/<message id>_<safe filename>.
type DiskLocator struct {
	Root string
}

// Attachments returns the message's attachments: first the parts declared
// in the payload, then any other file stored under the message prefix.
func (l DiskLocator) Attachments(msg model.MessageRecord) []model.AttachmentRef {
	if l.Root == "" || !safeSegment(msg.ThreadID) || !safeSegment(msg.ID) {
		return nil
	}

	threadDir := filepath.Join(l.Root, msg.ThreadID)
	prefix := msg.ID + "_"
	seen := make(map[string]struct{})
	var refs []model.AttachmentRef

	for _, part := range msg.Parts {
		part.Walk(func(p model.ContentPart) {
			if p.Filename == "" {
				return
			}
			path := filepath.Join(threadDir, prefix+SafeFilename(p.Filename))
			if _, dup := seen[path]; dup {
				return
			}
			seen[path] = struct{}{}
			refs = append(refs, model.AttachmentRef{
				ThreadID:  msg.ThreadID,
				MessageID: msg.ID,
				Filename:  p.Filename,
				MediaType: p.MediaType,
				Path:      path,
			})
		})
	}

	entries, err := os.ReadDir(threadDir)
	if err != nil {
		return refs
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, sidecarSuffix) {
			continue
		}
		path := filepath.Join(threadDir, name)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		filename := strings.TrimPrefix(name, prefix)
		refs = append(refs, model.AttachmentRef{
			ThreadID:  msg.ThreadID,
			MessageID: msg.ID,
			Filename:  filename,
			MediaType: mediaTypeByExtension(filename),
			Path:      path,
		})
	}
	return refs
}

// SafeFilename reduces a declared filename to the characters the archiver
// keeps when naming files on disk.
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._- ", r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// mediaTypes maps the extensions found in legal mail archives to media
// types. A fixed table keeps the output independent of the host's mime
// database.
var mediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".htm":  "text/html",
	".html": "text/html",
	".xml":  "application/xml",
	".json": "application/json",
	".eml":  "message/rfc822",
	".ics":  "text/calendar",
	".vcf":  "text/vcard",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".zip":  "application/zip",
	".7z":   "application/x-7z-compressed",
	".rar":  "application/vnd.rar",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
}

func mediaTypeByExtension(filename string) string {
	if mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mediaType
	}
	return "application/octet-stream"
}
