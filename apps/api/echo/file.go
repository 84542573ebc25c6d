package echoapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/school"
)

const maxUploadSize = 100 << 20 // 100 MiB

// fileApi stores uploads on disk under the configured upload dir and
// hands back attachment metadata to embed in assignments/submissions.
type fileApi struct {
	uploadDir string
}

func registerFileAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config) {
	api := fileApi{uploadDir: conf.Server.UploadDir}

	fg := g.Group("/files", jwt)
	fg.POST("", api.upload)
}

func (api *fileApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errNoFileUpload
	}
	if fh.Size > maxUploadSize {
		return errFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	// stored under a fresh name; the original one only survives in the
	// returned metadata
	name := uuid.New().String() + filepath.Ext(fh.Filename)
	if err = os.MkdirAll(api.uploadDir, 0o755); err != nil {
		return errors.Wrap(err, "creating upload dir")
	}
	dst, err := os.Create(filepath.Join(api.uploadDir, name))
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return errors.Wrap(err, "storing file")
	}

	mime := fh.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}

	return ctx.JSON(http.StatusCreated, school.File{
		ID:       uuid.New().String(),
		Name:     fh.Filename,
		MimeType: mime,
		SizeKB:   sizeKB(fh.Size),
		Kind:     school.KindForMime(mime),
		URL:      "/uploads/" + name,
	})
}

// sizeKB rounds to the nearest KiB, never reporting less than 1.
func sizeKB(size int64) int64 {
	kb := (size + 512) / 1024
	if kb < 1 {
		kb = 1
	}
	return kb
}
