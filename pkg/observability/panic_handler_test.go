package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "reload")
		panic("bad index")
	}()

	entry := decodeLine(t, &buf)
	assert.Equal(t, "bad index", entry["panic"])
	assert.Equal(t, "reload", entry["context"])
	assert.NotEmpty(t, entry["stack"])
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var got interface{}
	func() {
		defer RecoverPanicWithCallback(Nop(), "worker", func(r interface{}) { got = r })
		panic(42)
	}()
	assert.Equal(t, 42, got)

	called := false
	func() {
		defer RecoverPanicWithCallback(Nop(), "worker", func(interface{}) { called = true })
	}()
	assert.False(t, called)
}

func TestPanicError(t *testing.T) {
	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("oops"), "panic: oops")

	cause := errors.New("nil map")
	assert.ErrorIs(t, PanicError(cause), cause)
}
