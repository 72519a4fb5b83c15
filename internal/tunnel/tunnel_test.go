package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectionOkState(t *testing.T) {
	s := StateOk
	assert.True(t, s.CanRead(Flags{Readable: true}))
	assert.False(t, s.CanRead(Flags{Readable: false}))
	assert.True(t, s.CanWrite(Flags{Writable: true}))
	assert.False(t, s.CanWrite(Flags{Writable: false}))
}

func TestProjectionReaderWantWriteResumesOnWritable(t *testing.T) {
	s := StateReaderWantWrite
	assert.False(t, s.CanRead(Flags{Readable: true, Writable: false}), "must not resume on readable alone")
	assert.True(t, s.CanRead(Flags{Readable: false, Writable: true}), "must resume on writable")
}

func TestProjectionWriterWantReadResumesOnReadable(t *testing.T) {
	s := StateWriterWantRead
	assert.False(t, s.CanWrite(Flags{Readable: false, Writable: true}))
	assert.True(t, s.CanWrite(Flags{Readable: true, Writable: false}))
}

func TestProjectionCrossDirectionDoesNotLicenseOppositeOp(t *testing.T) {
	// A pending write (WriterWantWrite) says nothing about whether a
	// read should be retried.
	s := StateWriterWantWrite
	assert.False(t, s.CanRead(Flags{Readable: true, Writable: true}))
}
