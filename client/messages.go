package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/dermlab/skinconsult-client/models"
)

// SendMessage posts a message to the session as multipart form data. The
// backend expects PascalCase field names: SessionId, UserId, Content,
// ImageUrl and a single Image file part.
func (c *Client) SendMessage(ctx context.Context, sessionID string, out models.OutgoingMessage) (models.Message, error) {
	if out.Empty() {
		return models.Message{}, models.ErrEmptyMessage
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := writeMessageForm(form, sessionID, c.Identity().UserID, out); err != nil {
		return models.Message{}, err
	}

	path := "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, form.FormDataContentType())
	if err != nil {
		return models.Message{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.Message{}, writeError("send message", status, body, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return models.Message{}, writeError("send message", status, body, nil)
	}

	var msg models.Message
	if err := unwrap(body, &msg); err != nil {
		return models.Message{}, writeError("send message", status, body, err)
	}
	return msg, nil
}

func writeMessageForm(form *multipart.Writer, sessionID, userID string, out models.OutgoingMessage) error {
	if err := form.WriteField("SessionId", sessionID); err != nil {
		return err
	}
	if userID != "" {
		if err := form.WriteField("UserId", userID); err != nil {
			return err
		}
	}
	if out.Content != "" {
		if err := form.WriteField("Content", out.Content); err != nil {
			return err
		}
	}
	if out.ImageURL != "" {
		if err := form.WriteField("ImageUrl", out.ImageURL); err != nil {
			return err
		}
	}
	if out.Image != nil {
		name := out.ImageName
		if name == "" {
			name = "attachment.jpg"
		}
		part, err := form.CreateFormFile("Image", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, out.Image); err != nil {
			return err
		}
	}
	return form.Close()
}
