// Package luarun hosts Lua programs for the runner.
//
// Each run gets its own interpreter with the base, table, string and math
// libraries. print and io.write go to the run's output channel, and sleep
// waits without blocking cancellation.
package luarun

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/output"
	"github.com/zjrosen/omniedit/internal/runner"
)

// DefaultChunkName names the source in Lua error messages.
const DefaultChunkName = "main"

// Option configures the Lua program.
type Option func(*config)

type config struct {
	chunkName string
	args      []string
}

// WithChunkName sets the name Lua reports in errors, usually the file name.
func WithChunkName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.chunkName = name
		}
	}
}

// WithArgs exposes args to the script as the global table arg.
func WithArgs(args ...string) Option {
	return func(c *config) {
		c.args = args
	}
}

// Program returns a runner.Program that executes its source as Lua.
// A run stopped through its context returns nil.
func Program(opts ...Option) runner.Program {
	cfg := config{chunkName: DefaultChunkName}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, source string, out *output.Channel) error {
		L := lua.NewState(lua.Options{SkipOpenLibs: true})
		defer L.Close()
		L.SetContext(ctx)

		openLibraries(L)
		installOutput(L, out)
		installSleep(L, ctx)
		installArgs(L, cfg.args)

		fn, err := L.Load(strings.NewReader(source), cfg.chunkName)
		if err != nil {
			return fmt.Errorf("compile %s: %w", cfg.chunkName, err)
		}
		L.Push(fn)
		err = L.PCall(0, lua.MultRet, nil)

		if ctx.Err() != nil {
			log.Debug(log.CatRun, "lua program interrupted", "chunk", cfg.chunkName)
			return nil
		}
		if err != nil {
			return fmt.Errorf("run %s: %w", cfg.chunkName, err)
		}
		return nil
	}
}

func openLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func installOutput(L *lua.LState, out *output.Channel) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		var b strings.Builder
		for i := 1; i <= n; i++ {
			if i > 1 {
				b.WriteByte('\t')
			}
			b.WriteString(L.ToStringMeta(L.Get(i)).String())
		}
		b.WriteByte('\n')
		out.Append(b.String())
		return 0
	}))

	io := L.NewTable()
	L.SetField(io, "write", L.NewFunction(func(L *lua.LState) int {
		for i := 1; i <= L.GetTop(); i++ {
			v := L.Get(i)
			switch v.Type() {
			case lua.LTString, lua.LTNumber:
				out.Append(v.String())
			default:
				L.ArgError(i, "string expected, got "+v.Type().String())
			}
		}
		return 0
	}))
	L.SetGlobal("io", io)
}

// installSleep registers sleep(ms). It returns early when ctx is done; the
// interpreter then aborts at its next instruction.
func installSleep(L *lua.LState, ctx context.Context) {
	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		ms := float64(L.CheckNumber(1))
		if !(ms > 0) {
			return 0
		}
		t := time.NewTimer(sleepDuration(ms))
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		return 0
	}))
}

// sleepDuration converts ms to a Duration, saturating at the largest one.
func sleepDuration(ms float64) time.Duration {
	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func installArgs(L *lua.LState, args []string) {
	tbl := L.NewTable()
	for _, a := range args {
		tbl.Append(lua.LString(a))
	}
	L.SetGlobal("arg", tbl)
}
