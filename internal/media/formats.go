package media

import (
	"path/filepath"
	"strings"
)

// Kind is the category a file is classified into by its extension.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindNote    Kind = "note"
	KindIgnored Kind = "ignored"
)

var supportedExtensions = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".webp": KindImage,
	".gif":  KindImage,
	".svg":  KindImage,
	".avif": KindImage,
	".mp4":  KindVideo,
	".webm": KindVideo,
	".ogv":  KindVideo,
	".json": KindNote,
	".txt":  KindNote,
}

// Classify maps a file name to its Kind. Unknown extensions are KindIgnored.
func Classify(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := supportedExtensions[ext]; ok {
		return kind
	}
	return KindIgnored
}

// BaseName strips the final extension. The second result is false when
// nothing usable is left (".json", "").
func BaseName(filename string) (string, bool) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if base == "" {
		return "", false
	}
	return base, true
}

func isStructuredNote(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".json"
}

func GetContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".avif":
		return "image/avif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".ogv":
		return "video/ogg"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
