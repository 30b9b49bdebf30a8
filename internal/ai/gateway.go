// gateway.go - Provider-neutral model gateway contract

package ai

import (
	"context"
	"io"

	"github.com/kaigodx/care_sheet_gemini/internal/common"
)

// Part is one element of a prompt: plain text, or a reference to a file
// previously uploaded to the model service. Exactly one field is set.
type Part struct {
	Text string
	File *FileRef
}

// TextPart builds a text prompt part.
func TextPart(s string) Part { return Part{Text: s} }

// FilePart builds a file-reference prompt part.
func FilePart(f *FileRef) Part { return Part{File: f} }

// FileRef is an opaque handle to a file held by the model service. The run
// that uploads a file owns it and must Delete it before finishing.
type FileRef struct {
	Name     string // server-side resource name, used for polling and deletion
	URI      string // URI referenced from prompts
	MIMEType string
	Unusable bool // ingestion failed; still needs deletion, never prompted
}

// Result is a model response. A content block is a response, not a
// transport failure: callers skip the unit of work that produced it and
// must never retry the same prompt.
type Result struct {
	Text        string
	Blocked     bool
	BlockReason string
	Truncated   bool
	Usage       *common.TokenUsage
}

// Gateway is the model-service collaborator consumed by the extractor,
// summarizer and reconciler. The Gemini implementation lives in gemini.go;
// tests substitute fakes.
type Gateway interface {
	// Generate submits prompt parts and returns the response. Rate limits
	// are retried internally with backoff; other failures surface as
	// *GatewayError.
	Generate(ctx context.Context, rc *common.RunContext, parts ...Part) (*Result, error)

	// Upload pushes file bytes to the model service and returns a handle.
	// The handle is not usable in prompts until WaitActive succeeds.
	Upload(ctx context.Context, r io.Reader, mimeType string) (*FileRef, error)

	// WaitActive polls until server-side ingestion leaves the processing
	// state, with an explicit deadline.
	WaitActive(ctx context.Context, rc *common.RunContext, f *FileRef) error

	// Delete releases a file handle. Mandatory cleanup on every exit path.
	Delete(ctx context.Context, f *FileRef) error
}
