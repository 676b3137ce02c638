package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/render"
	"github.com/fpang/virtual-tryon/internal/validation"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// upload is a validated multipart file held in memory.
type upload struct {
	Name    string
	Payload garment.Payload
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return &validation.Error{Field: "request", Message: "expected a multipart upload under 80MB"}
	}
	return nil
}

// readPart reads the named file part after running check on its header.
// A missing part returns (nil, nil).
func readPart(r *http.Request, field string, check func(validation.FileInfo) error) (*upload, error) {
	file, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()
	return readFile(file, hdr, check)
}

func readFile(file multipart.File, hdr *multipart.FileHeader, check func(validation.FileInfo) error) (*upload, error) {
	info := validation.FileInfo{
		Name:     hdr.Filename,
		MIMEType: hdr.Header.Get("Content-Type"),
		Size:     hdr.Size,
	}
	if err := check(info); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", hdr.Filename, err)
	}
	return &upload{Name: hdr.Filename, Payload: garment.Payload{Data: data, MIMEType: info.MIMEType}}, nil
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}
	img, err := readPart(r, "image", validation.CheckImageFile)
	if err != nil {
		writeError(w, err)
		return
	}
	if img == nil {
		httpError(w, http.StatusBadRequest, "image is required")
		return
	}
	s.mutate(w, r, func(sess *workflow.Session) error {
		sess.SetModelImage(workflow.ModelImage{Name: img.Name, Image: img.Payload})
		return nil
	})
}

// handleSetFabric binds a fabric to a garment kind. The form carries either
// an "image" part, or a PDF "document" with the client-rendered "preview"
// of the chosen "page" and an optional crop rectangle (cropX, cropY,
// cropWidth, cropHeight) in the preview's display space (displayWidth,
// displayHeight).
func (s *Server) handleSetFabric(w http.ResponseWriter, r *http.Request) {
	kind, err := garment.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}

	src, err := fabricFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Debug().
		Str("sessionId", r.PathValue("id")).
		Str("kind", string(kind)).
		Str("source", src.Describe()).
		Msg("Fabric bound")
	s.mutate(w, r, func(sess *workflow.Session) error {
		sess.SetFabric(kind, src)
		return nil
	})
}

func fabricFromForm(r *http.Request) (garment.Source, error) {
	img, err := readPart(r, "image", validation.CheckImageFile)
	if err != nil {
		return nil, err
	}
	if img != nil {
		return &garment.ImageSource{Name: img.Name, Image: img.Payload}, nil
	}

	doc, err := readPart(r, "document", validation.CheckDocumentFile)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &validation.Error{Field: validation.FieldImage, Message: "an image or a document is required"}
	}
	pages, err := render.PageCount(doc.Payload.Data)
	if err != nil {
		return nil, &validation.Error{Field: validation.FieldDocument, Message: "Could not read the PDF."}
	}

	preview, err := readPart(r, "preview", validation.CheckImageFile)
	if err != nil {
		return nil, err
	}
	if preview == nil {
		return nil, &validation.Error{Field: "preview", Message: "a rendered page preview is required with a document"}
	}

	page := 1
	if v := r.FormValue("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return nil, &validation.Error{Field: "page", Message: "page must be a number"}
		}
	}
	if page < 1 || page > pages {
		return nil, &validation.Error{Field: "page", Message: fmt.Sprintf("page must be between 1 and %d", pages)}
	}

	src := &garment.PageSource{
		DocumentName: doc.Name,
		Page:         page,
		PageCount:    pages,
		Preview:      preview.Payload,
	}

	region, ok, err := cropFromForm(r)
	if err != nil {
		return nil, err
	}
	if ok {
		dw, _ := strconv.Atoi(r.FormValue("displayWidth"))
		dh, _ := strconv.Atoi(r.FormValue("displayHeight"))
		cropped, err := render.Crop(preview.Payload, region, dw, dh)
		if err != nil {
			return nil, &validation.Error{Field: "crop", Message: err.Error()}
		}
		src.Crop = &garment.Crop{Region: region, Image: cropped}
	}
	return src, nil
}

// cropFromForm reads the crop rectangle. It reports false when no crop
// fields were sent.
func cropFromForm(r *http.Request) (garment.Rect, bool, error) {
	fields := []string{"cropX", "cropY", "cropWidth", "cropHeight"}
	vals := make([]int, len(fields))
	present := 0
	for i, f := range fields {
		v := r.FormValue(f)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return garment.Rect{}, false, &validation.Error{Field: "crop", Message: f + " must be a number"}
		}
		vals[i] = n
		present++
	}
	switch present {
	case 0:
		return garment.Rect{}, false, nil
	case len(fields):
		return garment.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true, nil
	}
	return garment.Rect{}, false, &validation.Error{Field: "crop", Message: "crop needs cropX, cropY, cropWidth and cropHeight"}
}
