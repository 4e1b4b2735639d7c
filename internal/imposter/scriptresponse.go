package imposter

import (
	"fmt"
	"net/http"

	"github.com/dop251/goja"
	"github.com/expr-lang/expr"
	lua "github.com/yuin/gopher-lua"

	"github.com/oriys/rift/internal/domain"
)

// materializeInject runs the legacy JS-only Inject response variant: the
// script is a function called as `(request, response)`. A string or object
// it returns becomes the response; when it returns nothing, the fields it
// assigned on the mutable `response` object are used (mirroring decorate's
// calling convention).
func (rt *Runtime) materializeInject(w http.ResponseWriter, req *domain.Request, source string) bool {
	is, err := runJSInject(source, req)
	if err != nil {
		writeDiagnostic500(w, err)
		return false
	}
	writeIsResponse(w, is)
	return true
}

// materializeRiftScript runs a RiftScript response (explicit engine+code),
// supporting the same three engines as the script pool.
func (rt *Runtime) materializeRiftScript(w http.ResponseWriter, req *domain.Request, script *domain.RiftScript) bool {
	var is *domain.IsResponse
	var err error
	switch script.Engine {
	case "javascript", "js", "":
		is, err = runJSInject(script.Code, req)
	case "lua":
		is, err = runLuaInject(script.Code, req)
	case "rhai":
		is, err = runExprInject(script.Code, req)
	default:
		err = fmt.Errorf("imposter: unknown rift script engine %q", script.Engine)
	}
	if err != nil {
		writeDiagnostic500(w, err)
		return false
	}
	writeIsResponse(w, is)
	return true
}

func runJSInject(source string, req *domain.Request) (*domain.IsResponse, error) {
	vm := goja.New()
	response := vm.NewObject()
	response.Set("statusCode", 200)
	response.Set("headers", map[string]interface{}{})
	response.Set("body", "")

	requestVal := vm.ToValue(requestEnvImposter(req))
	script := "(" + source + ")(request, response);"
	vm.Set("request", requestVal)
	vm.Set("response", response)

	result, err := vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("imposter: inject javascript: %w", err)
	}
	if result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
		return isResponseFromValue(result.Export())
	}
	return isResponseFromValue(response.Export())
}

func runExprInject(source string, req *domain.Request) (*domain.IsResponse, error) {
	env := map[string]interface{}{"request": requestEnvImposter(req)}
	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("imposter: inject expression compile: %w", err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("imposter: inject expression run: %w", err)
	}
	return isResponseFromValue(out)
}

func runLuaInject(source string, req *domain.Request) (*domain.IsResponse, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("imposter: inject lua load: %w", err)
	}
	fn := L.GetGlobal("inject")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("imposter: inject lua: global function 'inject' is not defined")
	}

	reqTable := L.NewTable()
	for k, v := range requestEnvImposter(req) {
		reqTable.RawSetString(k, lua.LString(fmt.Sprintf("%v", v)))
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, reqTable); err != nil {
		return nil, fmt.Errorf("imposter: inject lua call: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	table, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("imposter: inject lua: expected a table return value")
	}
	is := &domain.IsResponse{StatusCode: 200}
	if sc, ok := table.RawGetString("statusCode").(lua.LNumber); ok {
		is.StatusCode = int(sc)
	}
	if body, ok := table.RawGetString("body").(lua.LString); ok {
		is.Body = string(body)
	}
	return is, nil
}

func requestEnvImposter(req *domain.Request) map[string]interface{} {
	return map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"headers":     map[string][]string(req.Headers),
		"query":       map[string][]string(req.Query),
		"body":        req.Body,
		"requestFrom": req.RequestFrom,
		"ip":          req.IP,
	}
}

// isResponseFromValue decodes a script's returned value into an IsResponse.
// Scripts may return a plain string (used as the body with a 200 default)
// or an object with statusCode/headers/body fields.
func isResponseFromValue(v interface{}) (*domain.IsResponse, error) {
	if s, ok := v.(string); ok {
		return &domain.IsResponse{StatusCode: 200, Body: s}, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("imposter: script must return a string or an object")
	}
	is := &domain.IsResponse{StatusCode: 200}
	if sc, ok := m["statusCode"]; ok {
		is.StatusCode = sc
	}
	if body, ok := m["body"]; ok {
		is.Body = body
	}
	if headers, ok := m["headers"].(map[string]interface{}); ok {
		is.Headers = headers
	}
	return is, nil
}
