package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/missing-person-client/internal/media"
)

type formField struct {
	name  string
	value string
}

type formFile struct {
	field string
	path  string
}

// multipartBody streams fields and files as multipart/form-data. Files are
// opened before returning so that a missing file fails without a request.
// The returned reader must be consumed or closed.
func multipartBody(fields []formField, files []formFile) (io.ReadCloser, string, error) {
	opened := make([]*os.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, ff := range files {
		f, err := os.Open(ff.path)
		if err != nil {
			closeAll()
			return nil, "", fmt.Errorf("open %s: %w", ff.field, err)
		}
		opened = append(opened, f)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer closeAll()
		err := writeParts(mw, fields, files, opened)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType(), nil
}

func writeParts(mw *multipart.Writer, fields []formField, files []formFile, opened []*os.File) error {
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	for i, ff := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(ff.field), escapeQuotes(filepath.Base(ff.path))))
		h.Set("Content-Type", media.MIMEType(ff.path))
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", ff.field, err)
		}
		if _, err := io.Copy(part, opened[i]); err != nil {
			return fmt.Errorf("copy %s: %w", ff.field, err)
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
