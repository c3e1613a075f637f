package serde

import (
	"testing"

	"github.com/lune-org/lune/internal/core"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	funcs map[string]any
}

func newFakeRuntime() *fakeRuntime { return &fakeRuntime{funcs: map[string]any{}} }

func (f *fakeRuntime) Eval(src string) error                 { return nil }
func (f *fakeRuntime) EvalString(src string) (string, error) { return "", nil }
func (f *fakeRuntime) EvalBool(src string) (bool, error)      { return false, nil }
func (f *fakeRuntime) EvalInt(src string) (int, error)        { return 0, nil }
func (f *fakeRuntime) SetGlobal(name string, value any) error { return nil }
func (f *fakeRuntime) RunMicrotasks()                         {}
func (f *fakeRuntime) Compile(src, chunkName string) (core.CompiledChunk, error) {
	return nil, nil
}
func (f *fakeRuntime) EvalCompiled(c core.CompiledChunk) (core.Values, error) { return nil, nil }
func (f *fakeRuntime) Close()                                                 {}

func (f *fakeRuntime) RegisterFunc(name string, fn any) error {
	f.funcs[name] = fn
	return nil
}

func TestRegisteredHashProducesStableDigest(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	hash := rt.funcs["__serde_hash"].(func(string, string) (string, error))

	digest, err := hash("sha256", "hello")
	require.NoError(t, err)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digest)
}

func TestRegisteredHMACProducesKeyedDigest(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	hmacFn := rt.funcs["__serde_hmac"].(func(string, string, string) (string, error))

	digest, err := hmacFn("sha256", "hello", "secret")
	require.NoError(t, err)
	require.Len(t, digest, 64) // hex-encoded sha256 is 32 bytes -> 64 hex chars
}

func TestRegisteredHMACRejectsUnknownAlgorithm(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	hmacFn := rt.funcs["__serde_hmac"].(func(string, string, string) (string, error))
	_, err := hmacFn("rot13", "hello", "secret")
	require.Error(t, err)
}

func TestRegisteredCompressDecompressRoundTripsBase64(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	compress := rt.funcs["__serde_compress"].(func(string, string) (string, error))
	decompress := rt.funcs["__serde_decompress"].(func(string, string) (string, error))

	compressed, err := compress("gzip", "aGVsbG8gd29ybGQ=") // base64("hello world")
	require.NoError(t, err)

	roundTripped, err := decompress("gzip", compressed)
	require.NoError(t, err)
	require.Equal(t, "aGVsbG8gd29ybGQ=", roundTripped)
}
