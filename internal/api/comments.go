package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boardsync/boardsync/internal/domain/comment"
)

// CommentsAPI groups task comment endpoints.
type CommentsAPI struct {
	c *Client
}

// Comments returns the comment endpoint group.
func (c *Client) Comments() CommentsAPI { return CommentsAPI{c: c} }

// ByTask lists comments on a task, newest first.
func (a CommentsAPI) ByTask(ctx context.Context, taskID string) ([]comment.Comment, error) {
	endpoint := "/tasks/" + url.PathEscape(taskID) + "/comments?limit=100"
	comments, _, err := getList[comment.Comment](ctx, a.c, endpoint)
	return comments, err
}

// Create posts a plain-text comment.
func (a CommentsAPI) Create(ctx context.Context, taskID, content string) (*comment.Comment, error) {
	endpoint := "/tasks/" + url.PathEscape(taskID) + "/comments"
	body := map[string]string{"content": content}
	return mutateEntity[comment.Comment](ctx, a.c, http.MethodPost, endpoint, body)
}

// CreateWithAttachment posts a comment with a file using the multipart
// encoding the attachment endpoint requires.
func (a CommentsAPI) CreateWithAttachment(ctx context.Context, taskID, content, filename string, file io.Reader) (*comment.Comment, error) {
	endpoint := "/tasks/" + url.PathEscape(taskID) + "/comments"
	fields := map[string]string{}
	if strings.TrimSpace(content) != "" {
		fields["content"] = strings.TrimSpace(content)
	}
	var env entityEnvelope
	if err := a.c.DoMultipart(ctx, endpoint, fields, "file", filename, file, &env); err != nil {
		return nil, err
	}
	return decodeEntity[comment.Comment](env.Data)
}

// Update edits a comment's content.
func (a CommentsAPI) Update(ctx context.Context, taskID, commentID, content string) (*comment.Comment, error) {
	endpoint := "/tasks/" + url.PathEscape(taskID) + "/comments/" + url.PathEscape(commentID)
	body := map[string]string{"content": content}
	return mutateEntity[comment.Comment](ctx, a.c, http.MethodPut, endpoint, body)
}

// Delete removes a comment.
func (a CommentsAPI) Delete(ctx context.Context, taskID, commentID string) error {
	endpoint := "/tasks/" + url.PathEscape(taskID) + "/comments/" + url.PathEscape(commentID)
	var env deleteEnvelope
	return a.c.Do(ctx, http.MethodDelete, endpoint, nil, &env)
}
