package ai

import (
	"context"
	"fmt"
	"io"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
)

// fakeGateway scripts Generate/Upload/WaitActive outcomes per call and
// records what was deleted.
type fakeGateway struct {
	results    []*Result
	genErrs    []error
	generated  [][]Part
	uploads    int
	uploadErrs []error
	waitErrs   []error
	deleted    []string
}

func (f *fakeGateway) Generate(ctx context.Context, rc *common.RunContext, parts ...Part) (*Result, error) {
	i := len(f.generated)
	f.generated = append(f.generated, parts)
	if i < len(f.genErrs) && f.genErrs[i] != nil {
		return nil, f.genErrs[i]
	}
	if i < len(f.results) && f.results[i] != nil {
		return f.results[i], nil
	}
	return &Result{Text: "{}"}, nil
}

func (f *fakeGateway) Upload(ctx context.Context, r io.Reader, mimeType string) (*FileRef, error) {
	i := f.uploads
	f.uploads++
	if i < len(f.uploadErrs) && f.uploadErrs[i] != nil {
		return nil, f.uploadErrs[i]
	}
	name := fmt.Sprintf("files/fake-%d", i)
	return &FileRef{Name: name, URI: "uri://" + name, MIMEType: mimeType}, nil
}

func (f *fakeGateway) WaitActive(ctx context.Context, rc *common.RunContext, ref *FileRef) error {
	idx := -1
	fmt.Sscanf(ref.Name, "files/fake-%d", &idx)
	if idx >= 0 && idx < len(f.waitErrs) && f.waitErrs[idx] != nil {
		return f.waitErrs[idx]
	}
	return nil
}

func (f *fakeGateway) Delete(ctx context.Context, ref *FileRef) error {
	f.deleted = append(f.deleted, ref.Name)
	return nil
}

// promptText extracts the text parts of a recorded Generate call.
func promptText(parts []Part) string {
	text := ""
	for _, p := range parts {
		text += p.Text
	}
	return text
}

func fileParts(parts []Part) int {
	n := 0
	for _, p := range parts {
		if p.File != nil {
			n++
		}
	}
	return n
}
