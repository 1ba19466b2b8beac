package gif

// Extension kind bytes recognized structurally by the reader/writer; any
// other kind is an opaque application or private extension preserved
// verbatim.
const (
	ExtKindGraphicControl = 0xF9
	ExtKindComment        = 0xFE
	ExtKindName           = 0xCE // gifsicle extension: identifier for next image
	ExtKindApplication    = 0xFF
	ExtKindPlainText      = 0x01
)

// NetscapeLoopIdentifier is the 11-byte application identifier + auth code
// gifsicle (and every other tool) recognizes as the looping extension.
const NetscapeLoopIdentifier = "NETSCAPE2.0"

// attachment describes where an Extension is currently linked into the
// object graph, so Unlink can be explicit rather than relying on a stream
// being torn down around it (Design note: "Extension back-pointers become a
// typed enum").
type attachment int

const (
	detached attachment = iota
	attachedToStream
	attachedToImage
)

// Extension is a preserved or synthesized GIF extension block. Packetized
// extensions keep their original GIF sub-block framing; non-packetized ones
// are re-framed by the writer from a single concatenated Data payload.
type Extension struct {
	Kind       byte
	AppName    string // 1-255 byte application identifier, kind 0xFF only
	Data       []byte
	Packetized bool

	loc    attachment
	stream *Stream
	image  *Image
}

// NewExtension returns a detached extension of the given kind.
func NewExtension(kind byte, appName string) *Extension {
	return &Extension{Kind: kind, AppName: appName}
}

// Unlink removes the extension from whatever it is currently attached to.
// An extension belongs to at most one location in the graph; attaching it
// elsewhere first unlinks it here.
func (e *Extension) Unlink() {
	switch e.loc {
	case attachedToStream:
		removeExtension(&e.stream.EndExtensions, e)
	case attachedToImage:
		removeExtension(&e.image.Extensions, e)
	}
	e.loc = detached
	e.stream = nil
	e.image = nil
}

func removeExtension(list *[]*Extension, e *Extension) {
	for i, x := range *list {
		if x == e {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// AttachToStreamEnd appends the extension to the stream's trailing
// extension list (the "end of stream" position).
func (e *Extension) AttachToStreamEnd(s *Stream) {
	e.Unlink()
	s.EndExtensions = append(s.EndExtensions, e)
	e.loc = attachedToStream
	e.stream = s
}

// AttachToImage appends the extension to an image's extension list (the
// "before this image" position).
func (e *Extension) AttachToImage(img *Image) {
	e.Unlink()
	img.Extensions = append(img.Extensions, e)
	e.loc = attachedToImage
	e.image = img
}

// Copy returns a detached deep copy.
func (e *Extension) Copy() *Extension {
	out := &Extension{Kind: e.Kind, AppName: e.AppName, Packetized: e.Packetized}
	out.Data = append([]byte(nil), e.Data...)
	return out
}
