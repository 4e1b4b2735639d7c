package scriptpool

import (
	"encoding/json"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/oriys/rift/internal/domain"
)

type compiledLua struct {
	proto *lua.FunctionProto
}

// compileLua parses source once and keeps the resulting bytecode
// (FunctionProto), the stack-based-VM analogue of goja's Program: cheap to
// re-load into a fresh *lua.LState on every call.
func compileLua(source string) (Compiled, error) {
	chunk, err := parse.Parse(strings.NewReader(source), "should_inject.lua")
	if err != nil {
		return nil, fmt.Errorf("scriptpool: lua parse: %w", err)
	}
	proto, err := lua.Compile(chunk, "should_inject.lua")
	if err != nil {
		return nil, fmt.Errorf("scriptpool: lua compile: %w", err)
	}
	return &compiledLua{proto: proto}, nil
}

func (c *compiledLua) ShouldInject(req *domain.Request, store *BoundFlow) (Decision, error) {
	L := lua.NewState()
	defer L.Close()

	lfunc := L.NewFunctionFromProto(c.proto)
	L.Push(lfunc)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return Decision{}, fmt.Errorf("scriptpool: lua run: %w", err)
	}

	fn := L.GetGlobal("should_inject")
	callable, ok := fn.(*lua.LFunction)
	if !ok {
		return Decision{}, fmt.Errorf("scriptpool: lua: should_inject is not defined")
	}

	if err := L.CallByParam(lua.P{Fn: callable, NRet: 1, Protect: true}, requestTableLua(L, req), flowTableLua(L, store)); err != nil {
		return Decision{}, fmt.Errorf("scriptpool: lua: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	table, ok := ret.(*lua.LTable)
	if !ok {
		return Decision{}, fmt.Errorf("scriptpool: lua: should_inject must return a table")
	}
	return decodeDecisionLua(table), nil
}

func requestTableLua(L *lua.LState, req *domain.Request) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("method", lua.LString(req.Method))
	t.RawSetString("path", lua.LString(req.Path))
	t.RawSetString("body", lua.LString(req.Body))
	t.RawSetString("requestFrom", lua.LString(req.RequestFrom))
	t.RawSetString("ip", lua.LString(req.IP))
	t.RawSetString("headers", stringMapTableLua(L, req.Headers))
	t.RawSetString("query", stringMapTableLua(L, req.Query))
	return t
}

func stringMapTableLua(L *lua.LState, m map[string][]string) *lua.LTable {
	t := L.NewTable()
	for k, vals := range m {
		vt := L.NewTable()
		for _, v := range vals {
			vt.Append(lua.LString(v))
		}
		t.RawSetString(k, vt)
	}
	return t
}

func flowTableLua(L *lua.LState, store *BoundFlow) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		val, ok, _ := store.Get(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		var decoded interface{}
		if err := json.Unmarshal(val, &decoded); err != nil {
			L.Push(lua.LString(val))
			return 1
		}
		L.Push(goValueToLua(L, decoded))
		return 1
	}))
	t.RawSetString("set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		val := L.CheckAny(2)
		raw, err := json.Marshal(luaValueToGo(val))
		if err == nil {
			store.Set(key, raw)
		}
		return 0
	}))
	t.RawSetString("exists", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		ok, _ := store.Exists(key)
		L.Push(lua.LBool(ok))
		return 1
	}))
	t.RawSetString("delete", L.NewFunction(func(L *lua.LState) int {
		store.Delete(L.CheckString(1))
		return 0
	}))
	t.RawSetString("increment", L.NewFunction(func(L *lua.LState) int {
		n, _ := store.Increment(L.CheckString(1))
		L.Push(lua.LNumber(n))
		return 1
	}))
	t.RawSetString("setTTL", L.NewFunction(func(L *lua.LState) int {
		store.SetTTL(L.CheckInt(1))
		return 0
	}))
	return t
}

func goValueToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case bool:
		return lua.LBool(val)
	case nil:
		return lua.LNil
	default:
		raw, _ := json.Marshal(val)
		return lua.LString(raw)
	}
}

func luaValueToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	default:
		return v.String()
	}
}

func decodeDecisionLua(t *lua.LTable) Decision {
	d := Decision{}
	if b, ok := t.RawGetString("inject").(lua.LBool); ok {
		d.Inject = bool(b)
	}
	if s, ok := t.RawGetString("fault").(lua.LString); ok {
		d.Fault = string(s)
	}
	if n, ok := t.RawGetString("duration_ms").(lua.LNumber); ok {
		d.DurationMs = int(n)
	}
	if n, ok := t.RawGetString("status").(lua.LNumber); ok {
		d.Status = int(n)
	}
	if s, ok := t.RawGetString("body").(lua.LString); ok {
		d.Body = string(s)
	}
	if headers, ok := t.RawGetString("headers").(*lua.LTable); ok {
		d.Headers = map[string]string{}
		headers.ForEach(func(k, v lua.LValue) {
			if s, ok := v.(lua.LString); ok {
				d.Headers[k.String()] = string(s)
			}
		})
	}
	return d
}
