package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/zeldalabs/zelda/pkg/gemini"
)

// DriveSearchName is the function name the model uses for file search.
const DriveSearchName = "getFiles"

var mimeTypeByExtension = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"mp4":  "video/mp4",
	"zip":  "application/zip",
}

const driveListFields = "files(id, name, mimeType, size, createdTime, modifiedTime, webViewLink)"

// DriveSearch searches Google Drive for files by name or type. Access uses a
// service account, so only files shared with that account are visible.
type DriveSearch struct {
	service *drive.Service
	log     *slog.Logger
}

// NewDriveSearch authenticates against Drive with a service-account key file.
func NewDriveSearch(ctx context.Context, credentialsFile string, log *slog.Logger) (*DriveSearch, error) {
	if log == nil {
		log = slog.Default()
	}
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("authenticate drive service account: %w", err)
	}
	log.Info("drive search authenticated", "credentials", credentialsFile)
	return &DriveSearch{service: svc, log: log}, nil
}

// Name implements Tool.
func (d *DriveSearch) Name() string { return DriveSearchName }

// DriveSearchDeclaration describes the file-search function to the model.
func DriveSearchDeclaration() gemini.FunctionDeclaration {
	return gemini.FunctionDeclaration{
		Name:        DriveSearchName,
		Description: "Search the user's Google Drive. Pass a file name fragment, a file extension (pdf, docx, csv, ...) to search by type, or an empty search_term to list all accessible files.",
		Parameters: &gemini.Schema{
			Type: "OBJECT",
			Properties: map[string]*gemini.Schema{
				"search_term": {
					Type:        "STRING",
					Description: "File name fragment or file extension. Empty lists everything.",
				},
			},
		},
	}
}

// Call implements Tool. A search term matching a known file extension
// searches by MIME type, any other term searches by name, and an empty term
// lists all accessible files.
func (d *DriveSearch) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	term, _ := args["search_term"].(string)
	term = strings.TrimSpace(term)

	var (
		query      string
		searchInfo string
	)
	switch {
	case term == "":
		query = "trashed=false"
		searchInfo = "Retrieved all accessible files"
	case mimeTypeByExtension[strings.ToLower(term)] != "":
		query = fmt.Sprintf("mimeType='%s' and trashed=false", mimeTypeByExtension[strings.ToLower(term)])
		searchInfo = "Searched by file type: " + term
	default:
		query = fmt.Sprintf("name contains '%s' and trashed=false", strings.ReplaceAll(term, "'", `\'`))
		searchInfo = "Searched by file name: " + term
	}

	d.log.Info("drive search", "query", query)
	res, err := d.service.Files.List().
		Q(query).
		PageSize(100).
		Fields(driveListFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive file list: %w", err)
	}

	files := make([]map[string]any, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, map[string]any{
			"id":       f.Id,
			"name":     f.Name,
			"type":     f.MimeType,
			"size":     f.Size,
			"created":  f.CreatedTime,
			"modified": f.ModifiedTime,
			"link":     f.WebViewLink,
		})
	}

	return map[string]any{
		"success":     true,
		"files":       files,
		"count":       len(files),
		"search_info": searchInfo,
	}, nil
}
