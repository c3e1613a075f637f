package datetime

import (
	"testing"
	"time"

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

func TestDatetimeFromUnixProducesUTCComponents(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	fromUnix := rt.funcs["__datetime_fromUnix"].(func(int64) (string, error))

	// 2024-01-15T10:30:00Z
	result, err := fromUnix(1705314600)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"year":2024,"month":1,"day":15,"hour":10,"minute":30,"second":0,
		"millisecond":0,"weekday":1,"unixSeconds":1705314600
	}`, result)
}

func TestDatetimeFromIsoDateParsesRFC3339(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	fromIso := rt.funcs["__datetime_fromIsoDate"].(func(string) (string, error))

	result, err := fromIso("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	require.JSONEq(t, `{
		"year":2024,"month":1,"day":15,"hour":10,"minute":30,"second":0,
		"millisecond":0,"weekday":1,"unixSeconds":1705314600
	}`, result)
}

func TestDatetimeFromIsoDateRejectsInvalidInput(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	fromIso := rt.funcs["__datetime_fromIsoDate"].(func(string) (string, error))

	_, err := fromIso("not-a-date")
	require.Error(t, err)
}

func TestDatetimeFormatTranslatesLuauTokens(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	format := rt.funcs["__datetime_format"].(func(int64, string) (string, error))

	result, err := format(1705314600, "YYYY-MM-DD HH:mm:ss")
	require.NoError(t, err)
	require.Equal(t, "2024-01-15 10:30:00", result)
}

func TestDatetimeNowReturnsCurrentComponents(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, Register(rt))

	now := rt.funcs["__datetime_now"].(func() (string, error))

	before := time.Now().UTC().Year()
	result, err := now()
	require.NoError(t, err)
	require.Contains(t, result, `"year":`)

	fromUnix := rt.funcs["__datetime_fromUnix"].(func(int64) (string, error))
	_, err = fromUnix(0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, before, 2020) // sanity: clock isn't wildly wrong
}

func TestLuauToGoLayoutLeavesUnknownTokensAlone(t *testing.T) {
	require.Equal(t, "2006-01-02 literal text", luauToGoLayout("YYYY-MM-DD literal text"))
}
