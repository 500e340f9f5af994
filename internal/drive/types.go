package drive

import (
	drive "google.golang.org/api/drive/v3"
)

// File is the metadata view of a Drive file exposed to tools.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
	Description  string `json:"description,omitempty"`
}

// toFile converts a Drive API file to our File type.
func toFile(f *drive.File) File {
	if f == nil {
		return File{}
	}
	return File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
		WebViewLink:  f.WebViewLink,
		Description:  f.Description,
	}
}
