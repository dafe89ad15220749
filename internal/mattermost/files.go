package mattermost

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

type FileInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type,omitempty"`
	PostID    string `json:"post_id,omitempty"`
	CreateAt  int64  `json:"create_at,omitempty"`
	Extension string `json:"extension,omitempty"`
}

type fileUploadResponse struct {
	FileInfos []FileInfo `json:"file_infos"`
}

// UploadFile uploads one file to a channel and returns its info; the returned
// file ID is attached to a later CreatePost call by the caller.
func (c *Client) UploadFile(ctx context.Context, channelID, filename string, data []byte) (*FileInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &APIError{Op: "upload_file", Message: "channel_id is required"}
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, &APIError{Op: "upload_file", Message: "filename is required"}
	}
	if len(data) == 0 {
		return nil, &APIError{Op: "upload_file", Message: "file data is required"}
	}

	info, err := retryDo(ctx, c, "mattermost_upload_file", func(ctx context.Context) (*FileInfo, error) {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		if err := form.WriteField("channel_id", channelID); err != nil {
			return nil, &APIError{Op: "upload_file", Err: err}
		}
		part, err := form.CreateFormFile("files", filename)
		if err != nil {
			return nil, &APIError{Op: "upload_file", Err: err}
		}
		if _, err := part.Write(data); err != nil {
			return nil, &APIError{Op: "upload_file", Err: err}
		}
		if err := form.Close(); err != nil {
			return nil, &APIError{Op: "upload_file", Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/files", &buf)
		if err != nil {
			return nil, &APIError{Op: "upload_file", Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", form.FormDataContentType())

		var out fileUploadResponse
		if err := c.finish("upload_file", req, &out); err != nil {
			return nil, err
		}
		if len(out.FileInfos) == 0 {
			return nil, &APIError{Op: "upload_file", Message: "upload returned no file infos"}
		}
		return &out.FileInfos[0], nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("mattermost_file_uploaded",
		"file_id", info.ID,
		"channel_id", channelID,
		"name", info.Name,
		"size", info.Size,
	)
	return info, nil
}

func (c *Client) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, &APIError{Op: "get_file_info", Message: "file_id is required"}
	}
	return retryDo(ctx, c, "mattermost_get_file_info", func(ctx context.Context) (*FileInfo, error) {
		var out FileInfo
		if err := c.doJSON(ctx, "get_file_info", "GET", "/files/"+url.PathEscape(fileID)+"/info", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}
