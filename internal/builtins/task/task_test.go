package task

import (
	"testing"
	"time"

	"github.com/lune-org/lune/internal/core"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	funcs    map[string]any
	evaluated []string
	evalErr  error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{funcs: map[string]any{}}
}

func (f *fakeRuntime) Eval(src string) error {
	f.evaluated = append(f.evaluated, src)
	return f.evalErr
}
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

type fakeScheduler struct {
	nextID      core.ThreadId
	spawned     []core.ThreadId
	deferred    []core.ThreadId
	delayed     []time.Duration
	cancelled   []core.ThreadId
	finished    map[core.ThreadId]error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{finished: map[core.ThreadId]error{}}
}

func (s *fakeScheduler) mint() core.ThreadId {
	s.nextID++
	return s.nextID
}

func (s *fakeScheduler) Spawn(target Target, args core.Values) (core.ThreadId, error) {
	id := s.mint()
	s.spawned = append(s.spawned, id)
	target.Build(id)
	return id, nil
}

func (s *fakeScheduler) Defer(target Target, args core.Values) (core.ThreadId, error) {
	id := s.mint()
	s.deferred = append(s.deferred, id)
	target.Build(id)
	return id, nil
}

func (s *fakeScheduler) Delay(d time.Duration, target Target, args core.Values) (core.ThreadId, error) {
	id := s.mint()
	s.delayed = append(s.delayed, d)
	target.Build(id)
	return id, nil
}

func (s *fakeScheduler) Cancel(id core.ThreadId) {
	s.cancelled = append(s.cancelled, id)
}

func (s *fakeScheduler) Finish(id core.ThreadId, err error) {
	s.finished[id] = err
}

func TestDurationFromSecondsClampsNonPositive(t *testing.T) {
	require.Equal(t, time.Duration(0), durationFromSeconds(0))
	require.Equal(t, time.Duration(0), durationFromSeconds(-1))
	require.Equal(t, 500*time.Millisecond, durationFromSeconds(0.5))
	require.Equal(t, 2*time.Second, durationFromSeconds(2))
}

func TestJsStringLiteralEscapesSpecialCharacters(t *testing.T) {
	require.Equal(t, `"hello"`, jsStringLiteral("hello"))
	require.Equal(t, `"a\"b"`, jsStringLiteral(`a"b`))
}

func TestJsRunTargetBuildNeverRunsScript(t *testing.T) {
	rt := newFakeRuntime()
	sched := newFakeScheduler()

	target := jsRunTarget(rt, sched, 7)
	coro := target.Build(42)

	require.IsType(t, taskRunCoroutine{}, coro)
	require.Empty(t, rt.evaluated, "Build must not run script code; only Resume may")
	require.Empty(t, sched.finished)
}

func TestJsRunTargetResumeEvaluatesTaskRunCall(t *testing.T) {
	rt := newFakeRuntime()
	sched := newFakeScheduler()

	target := jsRunTarget(rt, sched, 7)
	coro := target.Build(42)
	require.Empty(t, rt.evaluated)

	coro.Resume(core.ValuesPayload(nil))

	require.Equal(t, []string{"__taskRun(7, 42)"}, rt.evaluated)
	require.Empty(t, sched.finished) // success path never calls Finish directly
}

func TestJsRunTargetResumeFinishesOnEvalError(t *testing.T) {
	rt := newFakeRuntime()
	rt.evalErr = core.NewScriptError("parse failed", "")
	sched := newFakeScheduler()

	target := jsRunTarget(rt, sched, 7)
	coro := target.Build(42)
	coro.Resume(core.ValuesPayload(nil))

	require.EqualError(t, sched.finished[42], "parse failed")
}

func TestSettleAwaitCoroutineResolvesOnSuccess(t *testing.T) {
	rt := newFakeRuntime()
	coro := settleAwaitCoroutine{rt: rt, id: 9}

	coro.Resume(core.ValuesPayload(core.Values{1, "two"}))

	require.Len(t, rt.evaluated, 1)
	require.Contains(t, rt.evaluated[0], "__threadResolve(9,")
	require.Contains(t, rt.evaluated[0], `[1,"two"]`)
}

func TestSettleAwaitCoroutineRejectsOnError(t *testing.T) {
	rt := newFakeRuntime()
	coro := settleAwaitCoroutine{rt: rt, id: 9}

	coro.Resume(core.ErrorPayload(core.NewScriptError("boom", "")))

	require.Len(t, rt.evaluated, 1)
	require.Contains(t, rt.evaluated[0], "__threadReject(9,")
	require.Contains(t, rt.evaluated[0], "boom")
}

func TestRegisterWiresSpawnDeferDelayCancel(t *testing.T) {
	rt := newFakeRuntime()
	sched := newFakeScheduler()
	require.NoError(t, Register(rt, sched))

	spawn := rt.funcs["__task_spawn"].(func(int) (uint64, error))
	id, err := spawn(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.Len(t, sched.spawned, 1)

	deferFn := rt.funcs["__task_defer"].(func(int) (uint64, error))
	_, err = deferFn(2)
	require.NoError(t, err)
	require.Len(t, sched.deferred, 1)

	delay := rt.funcs["__task_delay"].(func(float64, int) (uint64, error))
	_, err = delay(1.5, 3)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{1500 * time.Millisecond}, sched.delayed)

	cancel := rt.funcs["__task_cancel"].(func(uint64) (int, error))
	ok, err := cancel(id)
	require.NoError(t, err)
	require.Equal(t, 1, ok)
	require.Equal(t, []core.ThreadId{core.ThreadId(id)}, sched.cancelled)
}

func TestRegisterTaskSettleReportsSuccessAndFailure(t *testing.T) {
	rt := newFakeRuntime()
	sched := newFakeScheduler()
	require.NoError(t, Register(rt, sched))

	settle := rt.funcs["__task_settle"].(func(uint64, bool, string) (int, error))

	_, err := settle(1, true, "null")
	require.NoError(t, err)
	require.NoError(t, sched.finished[1])

	_, err = settle(2, false, `"boom"`)
	require.NoError(t, err)
	require.EqualError(t, sched.finished[2], "boom")
}

func TestRegisterWaitStartDelaysAndReturnsMintedID(t *testing.T) {
	rt := newFakeRuntime()
	sched := newFakeScheduler()
	require.NoError(t, Register(rt, sched))

	waitStart := rt.funcs["__wait_start"].(func(float64) (uint64, error))
	id, err := waitStart(0.25)
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Equal(t, []time.Duration{250 * time.Millisecond}, sched.delayed)
}
