package a2a

import (
	"encoding/base64"
	"fmt"
)

/*
Part is a discriminated union over Text, File and Data parts. We keep it
simple by embedding all optional fields in a single struct – this avoids
heavy custom JSON marshalling logic while remaining spec-compliant.

Exactly ONE of Text, File, or Data must be populated according to Type;
Validate enforces this instead of leaving it to convention.
*/
type Part struct {
	Type PartType `json:"type"`

	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartType is the discriminator for a Part union.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

type FilePart struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Bytes    string  `json:"bytes,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Type: PartTypeFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			Bytes:    base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewFilePartFromURI(name string, mimeType string, uri string) Part {
	return Part{
		Type: PartTypeFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			URI:      uri,
		},
	}
}

// Validate rejects multi-tag parts and any Type/payload mismatch. Exactly
// one of Text/File/Data may be set, matching Type.
func (p *Part) Validate() error {
	switch p.Type {
	case PartTypeText:
		if p.Text == "" {
			return fmt.Errorf("text part requires non-empty text")
		}
		if p.File != nil || p.Data != nil {
			return fmt.Errorf("text part must not also carry file or data")
		}
	case PartTypeFile:
		if p.File == nil {
			return fmt.Errorf("file part requires a file payload")
		}
		if p.Text != "" || p.Data != nil {
			return fmt.Errorf("file part must not also carry text or data")
		}
		if err := p.File.Validate(); err != nil {
			return err
		}
	case PartTypeData:
		if p.Data == nil {
			return fmt.Errorf("data part requires a data payload")
		}
		if p.Text != "" || p.File != nil {
			return fmt.Errorf("data part must not also carry text or file")
		}
	default:
		return fmt.Errorf("unknown part type %q", p.Type)
	}

	return nil
}

// Validate enforces FileContent exclusivity: exactly one of {bytes, uri}.
func (f *FilePart) Validate() error {
	hasBytes := f.Bytes != ""
	hasURI := f.URI != ""

	if hasBytes == hasURI {
		return fmt.Errorf("file part must set exactly one of bytes or uri")
	}

	return nil
}
