package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/dermlab/skinconsult-client/config"
)

// ErrDisabled is returned when no Cloudinary credentials are configured.
var ErrDisabled = errors.New("attachment upload is not configured")

// Uploader pushes message attachments to Cloudinary and hands back the
// hosted URL that rides the message as ImageUrl.
type Uploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// New creates an Uploader. An empty CLOUDINARY_URL yields a disabled
// uploader whose UploadImage returns ErrDisabled.
func New(cfg *config.Config) (*Uploader, error) {
	if cfg.CloudinaryURL == "" {
		return &Uploader{}, nil
	}
	cld, err := cloudinary.NewFromURL(cfg.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("configure cloudinary: %w", err)
	}
	return &Uploader{cld: cld, folder: cfg.CloudinaryFolder}, nil
}

// Enabled reports whether uploads are configured.
func (u *Uploader) Enabled() bool { return u.cld != nil }

// UploadImage uploads the image and returns its hosted secure URL.
func (u *Uploader) UploadImage(ctx context.Context, r io.Reader, name string) (string, error) {
	if u.cld == nil {
		return "", ErrDisabled
	}

	resp, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:   u.folder,
		PublicID: name,
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload image: %s", resp.Error.Message)
	}
	zap.S().Debugw("uploaded attachment",
		"publicId", resp.PublicID,
		"bytes", resp.Bytes,
	)
	return resp.SecureURL, nil
}
