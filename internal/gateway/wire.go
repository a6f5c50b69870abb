package gateway

import (
	"encoding/base64"
	"net/http"
)

// Wire types for the generative media REST API. Only the fields the core
// consumes are modeled.

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// parts flattens the first candidate's parts; responses with no candidates
// yield nil.
func (r *generateContentResponse) parts() []part {
	if len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

type predictLongRunningRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt    string       `json:"prompt"`
	Image     *inlineImage `json:"image,omitempty"`
	LastFrame *inlineImage `json:"lastFrame,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictParameters struct {
	DurationSeconds int `json:"durationSeconds,omitempty"`
}

type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

type operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationResponse struct {
	Videos []generatedVideo `json:"videos"`
}

type generatedVideo struct {
	GCSURI   string `json:"gcsUri"`
	MimeType string `json:"mimeType,omitempty"`
}

func newInlineData(image []byte) *inlineData {
	return &inlineData{
		MimeType: http.DetectContentType(image),
		Data:     base64.StdEncoding.EncodeToString(image),
	}
}

func newInlineImage(image []byte) *inlineImage {
	return &inlineImage{
		BytesBase64Encoded: base64.StdEncoding.EncodeToString(image),
		MimeType:           http.DetectContentType(image),
	}
}
