package comicbot

import (
	"errors"
	"fmt"
	"io"

	"github.com/h2non/filetype"
)

// MaxPhotoBytes bounds an uploaded photo.
const MaxPhotoBytes = 10 << 20

var ErrInvalidPhoto = errors.New("invalid photo")

var allowedPhotoTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Photo is the uploaded picture of the child. It is validated and kept with
// the session but never sent to either provider.
type Photo struct {
	Name   string
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// DecodePhoto reads and validates a PNG or JPEG upload.
func DecodePhoto(name string, r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidPhoto, MaxPhotoBytes)
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: not an image", ErrInvalidPhoto)
	}
	kind, _ := filetype.Match(data)
	if !allowedPhotoTypes[kind.MIME.Value] {
		return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidPhoto, kind.MIME.Value)
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPhoto, err)
	}
	return &Photo{
		Name:   name,
		Data:   data,
		MIME:   kind.MIME.Value,
		Width:  img.Width,
		Height: img.Height,
	}, nil
}
