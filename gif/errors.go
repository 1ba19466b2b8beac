package gif

import "github.com/pkg/errors"

// Sentinel format errors (§7). Readers increment Stream.Errors and report
// via a Diagnostic rather than aborting, except where the stream is so
// malformed that no further bytes can be interpreted (bad magic, or an
// unrecognized top-level block, which stops the read loop per §4.4).
var (
	ErrBadMagic          = errors.New("gif: bad magic (not GIF87a/GIF89a)")
	ErrUnknownBlock      = errors.New("gif: unknown top-level block")
	ErrTruncated         = errors.New("gif: truncated stream")
	ErrBadLZWCode        = errors.New("gif: bad LZW code")
	ErrMinCodeBitsRange  = errors.New("gif: min-code-bits out of range")
	ErrCropOutsideImage  = errors.New("gif: crop rectangle outside image")
	ErrNoColormap        = errors.New("gif: no global or local colormap for image")
	ErrUnreadableColormap = errors.New("gif: unreadable colormap file")
)

// Severity classifies a Diagnostic for callers that want to filter.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// Diagnostic is one event produced while reading, merging, or optimizing a
// stream: a distinct message, the stream/image it concerns, and the byte
// offset where it was noticed (0 if not applicable). CLIs turn these into
// "warning:"/"error:" lines; the core never prints anything itself (§6.3:
// "No CLI-specific behavior lives in the core").
type Diagnostic struct {
	Severity   Severity
	Message    string
	Landmark   string
	ImageIndex int // -1 if not image-specific
	Offset     uint32
}

// ErrorHandler receives diagnostics as they are produced. A nil handler
// means "collect silently" -- callers can still inspect Stream.Errors and
// whatever diagnostics channel they supplied.
type ErrorHandler func(d Diagnostic)

// diagnosticSink dedupes "report once per stream" messages (§7: "report
// each distinct message once per stream to the optional error handler").
type diagnosticSink struct {
	handler ErrorHandler
	seen    map[string]bool
	landmark string
}

func newDiagnosticSink(handler ErrorHandler, landmark string) *diagnosticSink {
	return &diagnosticSink{handler: handler, seen: make(map[string]bool), landmark: landmark}
}

func (d *diagnosticSink) emit(sev Severity, imageIndex int, offset uint32, message string) {
	if d.handler == nil {
		return
	}
	d.handler(Diagnostic{
		Severity:   sev,
		Message:    message,
		Landmark:   d.landmark,
		ImageIndex: imageIndex,
		Offset:     offset,
	})
}

// emitOnce reports message only the first time it is seen for this sink,
// matching messages like "local colormaps required".
func (d *diagnosticSink) emitOnce(sev Severity, imageIndex int, offset uint32, message string) {
	if d.seen[message] {
		return
	}
	d.seen[message] = true
	d.emit(sev, imageIndex, offset, message)
}
