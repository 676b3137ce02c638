package api

import (
	"encoding/base64"
	"time"

	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/prompt"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

func dataURI(p garment.Payload) string {
	if p.Empty() {
		return ""
	}
	mime := p.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

type imageView struct {
	Name    string `json:"name"`
	DataURI string `json:"dataUri"`
}

type cropView struct {
	Region  garment.Rect `json:"region"`
	DataURI string       `json:"dataUri"`
}

type fabricView struct {
	Type        garment.SourceType `json:"type"`
	Description string             `json:"description"`
	Name        string             `json:"name"`
	Page        int                `json:"page,omitempty"`
	PageCount   int                `json:"pageCount,omitempty"`
	DataURI     string             `json:"dataUri"`
	Crop        *cropView          `json:"crop,omitempty"`
}

type resultView struct {
	DataURI         string                 `json:"dataUri"`
	NumberedDataURI string                 `json:"numberedDataUri,omitempty"`
	DesignNumber    string                 `json:"designNumber,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	QualityFlags    []workflow.QualityFlag `json:"qualityFlags"`
	HasError        bool                   `json:"hasError"`
	Model           string                 `json:"model"`
	ModelResponse   string                 `json:"modelResponse,omitempty"`
	Usage           workflow.UsageSummary  `json:"usage"`
}

type sessionView struct {
	SessionID         string                      `json:"sessionId"`
	Step              workflow.Step               `json:"step"`
	CanProceed        map[workflow.Step]bool      `json:"canProceed"`
	ModelImage        *imageView                  `json:"modelImage"`
	Garments          garment.Set                 `json:"garments"`
	Fabrics           map[garment.Kind]fabricView `json:"fabrics"`
	Options           workflow.AdvancedOptions    `json:"options"`
	Generating        bool                        `json:"generating"`
	LastError         string                      `json:"lastError,omitempty"`
	Result            *resultView                 `json:"result"`
	AutoDesignCounter int                         `json:"autoDesignCounter"`
	EstimatedDuration string                      `json:"estimatedDuration"`
}

func newFabricView(src garment.Source) fabricView {
	v := fabricView{Type: src.Type(), Description: src.Describe()}
	switch s := src.(type) {
	case *garment.ImageSource:
		v.Name = s.Name
		v.DataURI = dataURI(s.Image)
	case *garment.PageSource:
		v.Name = s.DocumentName
		v.Page = s.Page
		v.PageCount = s.PageCount
		v.DataURI = dataURI(s.Preview)
		if s.Crop != nil {
			v.Crop = &cropView{Region: s.Crop.Region, DataURI: dataURI(s.Crop.Image)}
		}
	}
	return v
}

func newResultView(r *workflow.GenerationResult) *resultView {
	if r == nil {
		return nil
	}
	v := &resultView{
		DataURI:       dataURI(r.Image),
		DesignNumber:  r.DesignNumber,
		CreatedAt:     r.CreatedAt,
		QualityFlags:  r.QualityFlags,
		HasError:      r.HasError(),
		Model:         r.Model,
		ModelResponse: r.ModelResponse,
		Usage:         r.Usage,
	}
	if v.QualityFlags == nil {
		v.QualityFlags = []workflow.QualityFlag{}
	}
	if r.Numbered != nil {
		v.NumberedDataURI = dataURI(*r.Numbered)
	}
	return v
}

// newSessionView renders sess. It must be called while holding the session.
func newSessionView(sess *workflow.Session) sessionView {
	v := sessionView{
		SessionID:         sess.ID,
		Step:              sess.CurrentStep,
		CanProceed:        make(map[workflow.Step]bool, len(workflow.StepOrder)),
		Garments:          sess.Garments,
		Fabrics:           make(map[garment.Kind]fabricView, len(sess.Fabrics)),
		Options:           sess.Options,
		Generating:        sess.Generating,
		LastError:         sess.LastError,
		Result:            newResultView(sess.Result),
		AutoDesignCounter: sess.AutoDesignCounter,
		EstimatedDuration: prompt.EstimateDuration(sess.Garments),
	}
	for _, step := range workflow.StepOrder {
		v.CanProceed[step] = sess.CanProceed(step)
	}
	if sess.Model != nil {
		v.ModelImage = &imageView{Name: sess.Model.Name, DataURI: dataURI(sess.Model.Image)}
	}
	for k, src := range sess.Fabrics {
		v.Fabrics[k] = newFabricView(src)
	}
	return v
}
