package gif

// NoBackground is the Stream.Background sentinel meaning "no background
// color set".
const NoBackground = 256

// NoLoop is the Stream.LoopCount sentinel meaning "no Netscape loop
// extension was present/should be written".
const NoLoop = -1

// ObjectKind identifies the kind of object a deletion hook was registered
// against, matching the GIF_T_* constants of the original library.
type ObjectKind int

const (
	KindStream ObjectKind = iota
	KindImage
	KindColormap
)

type deletionHook struct {
	kind ObjectKind
	fn   func(kind ObjectKind, obj interface{}, userData interface{})
	user interface{}
}

// Stream is an ordered sequence of Images sharing a logical screen size, an
// optional global colormap, and end-of-stream metadata. Stream has
// reference-counted ownership: call Retain/Release rather than discarding a
// pointer, so registered deletion hooks fire exactly once.
type Stream struct {
	Images []*Image

	ScreenWidth, ScreenHeight uint16
	Global                    *Colormap
	Background                int // 0..255, or NoBackground
	LoopCount                 int32

	EndComment    *Comment
	EndExtensions []*Extension

	Errors   uint32
	Landmark string

	refcount int
	hooks    []deletionHook
}

// NewStream returns an empty stream with refcount 1, no background, and no
// loop extension.
func NewStream() *Stream {
	return &Stream{
		Background: NoBackground,
		LoopCount:  NoLoop,
		EndComment: NewComment(),
		refcount:   1,
	}
}

// Retain increments the reference count and returns the stream, so it can
// be chained: `kept := s.Retain()`.
func (s *Stream) Retain() *Stream {
	s.refcount++
	return s
}

// Release decrements the reference count, running registered deletion
// hooks and dropping the stream's own references to its images and
// colormap when it reaches zero.
func (s *Stream) Release() {
	s.refcount--
	if s.refcount > 0 {
		return
	}
	for _, h := range s.hooks {
		if h.kind == KindStream {
			h.fn(KindStream, s, h.user)
		}
	}
	for _, img := range s.Images {
		img.release(s)
	}
	s.Images = nil
	s.Global = nil
}

// AddImage appends img to the stream.
func (s *Stream) AddImage(img *Image) {
	s.Images = append(s.Images, img)
}

// RemoveImage removes the image at index i.
func (s *Stream) RemoveImage(i int) {
	s.Images = append(s.Images[:i], s.Images[i+1:]...)
}

// ImageCount returns the number of images (frames) in the stream.
func (s *Stream) ImageCount() int {
	return len(s.Images)
}

// NamedImage returns the first image whose Identifier matches name, or nil.
func (s *Stream) NamedImage(name string) *Image {
	for _, img := range s.Images {
		if img.Identifier == name {
			return img
		}
	}
	return nil
}

// AddDeletionHook registers fn to run when an object of the given kind
// belonging to this stream is released. Matches Gif_AddDeletionHook.
func (s *Stream) AddDeletionHook(kind ObjectKind, fn func(ObjectKind, interface{}, interface{}), user interface{}) {
	s.hooks = append(s.hooks, deletionHook{kind: kind, fn: fn, user: user})
}

// CalculateScreenSize recomputes ScreenWidth/ScreenHeight as the maximum of
// (left+width, top+height) across every image. If force is false, a
// nonzero existing screen size is left untouched.
func (s *Stream) CalculateScreenSize(force bool) {
	if !force && (s.ScreenWidth != 0 || s.ScreenHeight != 0) {
		return
	}
	var w, h int
	for _, img := range s.Images {
		if r := int(img.Left) + int(img.Width); r > w {
			w = r
		}
		if b := int(img.Top) + int(img.Height); b > h {
			h = b
		}
	}
	s.ScreenWidth, s.ScreenHeight = uint16(w), uint16(h)
}

// image.release notifies per-image/colormap deletion hooks registered on
// the owning stream, mirroring the original's hook dispatch which is keyed
// by stream, not by image.
func (img *Image) release(owner *Stream) {
	for _, h := range owner.hooks {
		if h.kind == KindImage {
			h.fn(KindImage, img, h.user)
		}
		if h.kind == KindColormap && img.Local != nil {
			h.fn(KindColormap, img.Local, h.user)
		}
	}
}
