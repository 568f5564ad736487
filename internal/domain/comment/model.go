package comment

import (
	"encoding/json"
	"time"
)

// Author is the denormalized user info the server attaches to populated
// comment listings.
type Author struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Attachment is an uploaded file reference on a comment.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Comment is a threaded message on a task.
type Comment struct {
	ID          string       `json:"_id"`
	TaskID      string       `json:"taskId"`
	UserID      string       `json:"userId"`
	User        *Author      `json:"user,omitempty"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// UnmarshalJSON accepts userId either as a plain id or as a populated
// {_id, name, email} object, mirroring how list endpoints populate authors
// while create/update responses do not.
func (c *Comment) UnmarshalJSON(data []byte) error {
	type alias Comment
	aux := struct {
		UserID json.RawMessage `json:"userId"`
		*alias
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.UserID) == 0 {
		return nil
	}

	var id string
	if err := json.Unmarshal(aux.UserID, &id); err == nil {
		c.UserID = id
		return nil
	}

	var author Author
	if err := json.Unmarshal(aux.UserID, &author); err != nil {
		return err
	}
	c.UserID = author.ID
	c.User = &author
	return nil
}
