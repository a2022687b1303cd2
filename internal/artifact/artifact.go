package artifact

import (
	"bytes"
	"io"
)

// Artifact is the assembled body of a completed download. It is never
// modified after Assemble returns.
type Artifact struct {
	data        []byte
	ContentType string
	Filename    string
}

// Assemble concatenates chunks, in order, into a single contiguous buffer.
// The chunk list is left untouched.
func Assemble(chunks [][]byte, contentType, filename string) *Artifact {
	var size int
	for _, c := range chunks {
		size += len(c)
	}

	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}

	return &Artifact{
		data:        data,
		ContentType: contentType,
		Filename:    filename,
	}
}

// Size returns the artifact length in bytes.
func (a *Artifact) Size() int64 {
	return int64(len(a.data))
}

// Bytes returns the artifact contents. The slice must not be modified.
func (a *Artifact) Bytes() []byte {
	return a.data
}

// Reader returns a fresh reader over the contents.
func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.data)
}
