package gif

// Comment is a list of NUL-safe byte strings, accumulated from one or more
// Comment Extension blocks (each sub-block chain becomes one entry).
type Comment struct {
	Strs [][]byte
}

// NewComment returns an empty comment list.
func NewComment() *Comment {
	return &Comment{}
}

// Add appends a copy of data as one comment string.
func (c *Comment) Add(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.Strs = append(c.Strs, cp)
}

// Copy returns a deep copy, or nil if c is nil.
func (c *Comment) Copy() *Comment {
	if c == nil {
		return nil
	}
	out := &Comment{Strs: make([][]byte, len(c.Strs))}
	for i, s := range c.Strs {
		cp := make([]byte, len(s))
		copy(cp, s)
		out.Strs[i] = cp
	}
	return out
}

// Merge appends every string of src onto c (used when a merged frame folds
// a neighbor's salvaged comment in, §4.7).
func (c *Comment) Merge(src *Comment) {
	if src == nil {
		return
	}
	for _, s := range src.Strs {
		c.Add(s)
	}
}
