// Package render turns an inspection record into a report document. The
// pipeline consumes it as an opaque collaborator; a render failure only omits
// the attachment and never fails the submission itself.
package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fieldform/inspection-api/internal/store/model"
)

type Renderer interface {
	Render(ctx context.Context, inspection *model.Inspection) ([]byte, error)
	ContentType() string
}

// TextRenderer produces a plain-text checklist report. The output is
// deterministic for identical input: no timestamps other than the record's own.
type TextRenderer struct{}

var _ Renderer = (*TextRenderer)(nil)

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (r *TextRenderer) Render(ctx context.Context, inspection *model.Inspection) ([]byte, error) {
	if inspection == nil {
		return nil, fmt.Errorf("no inspection to render")
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "INSPECTION REPORT %s\n", inspection.ID)
	fmt.Fprintf(&buf, "Status: %s\n", inspection.Status)
	fmt.Fprintf(&buf, "Created: %s\n", inspection.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	if inspection.CompletedAt != nil {
		fmt.Fprintf(&buf, "Completed: %s\n", inspection.CompletedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&buf, "Completion: %.0f%%\n\n", inspection.CompletionRatio*100)

	if inspection.Checklist != nil {
		// checklist order maps to a fixed external form, keep it as stored
		for i, item := range inspection.Checklist.Data {
			mark := "[ ]"
			if item.Checked {
				mark = "[x]"
			}
			fmt.Fprintf(&buf, "%3d. %s %s (%s)\n", i+1, mark, item.Label, item.PointID)
		}
	}

	return buf.Bytes(), nil
}
