package garment

import "fmt"

// SourceType tags the variant held by a Source.
type SourceType string

const (
	SourceImage        SourceType = "image"
	SourceDocumentPage SourceType = "document-page"
)

// Payload is an in-memory image with its MIME type.
type Payload struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the payload carries no bytes.
func (p Payload) Empty() bool { return len(p.Data) == 0 }

// Source is the origin of a fabric texture. It is implemented only by
// *ImageSource and *PageSource.
type Source interface {
	Type() SourceType
	// Describe returns the one-line description used in instructions.
	Describe() string
	// Payload returns the image sent to the generation service.
	Payload() Payload
	isSource()
}

// ImageSource is a fabric supplied directly as an image file.
type ImageSource struct {
	Name       string
	Image      Payload
	PreviewRef string
}

func (*ImageSource) isSource() {}

func (s *ImageSource) Type() SourceType { return SourceImage }

func (s *ImageSource) Describe() string {
	return "Direct image: " + s.Name
}

func (s *ImageSource) Payload() Payload { return s.Image }

// Rect is a pixel rectangle.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Crop is a region override on a document page.
type Crop struct {
	// Region is expressed in the preview's coordinate space.
	Region Rect
	Image  Payload
	Ref    string
}

// PageSource is a fabric taken from one page of a multi-page document.
type PageSource struct {
	DocumentName string
	DocumentRef  string
	// Page is 1-based.
	Page       int
	PageCount  int
	Preview    Payload
	PreviewRef string
	Crop       *Crop
}

func (*PageSource) isSource() {}

func (s *PageSource) Type() SourceType { return SourceDocumentPage }

func (s *PageSource) Describe() string {
	d := fmt.Sprintf("PDF: %s (Page %d)", s.DocumentName, s.Page)
	if s.Crop != nil {
		d += " [cropped]"
	}
	return d
}

// Payload prefers the cropped region over the full page preview.
func (s *PageSource) Payload() Payload {
	if s.Crop != nil && !s.Crop.Image.Empty() {
		return s.Crop.Image
	}
	return s.Preview
}

// Sources maps each garment kind to at most one bound fabric source.
type Sources map[Kind]Source

// Clone returns a shallow copy of the map.
func (s Sources) Clone() Sources {
	out := make(Sources, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
