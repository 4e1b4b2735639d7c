package behavior

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/expr-lang/expr"

	"github.com/oriys/rift/internal/domain"
)

// ResponseView is the mutable projection of an IsResponse a decorate
// script is allowed to rewrite: status code, headers, and body.
type ResponseView struct {
	StatusCode int
	Headers    map[string]interface{}
	Body       interface{}
}

// Decorate runs a decorate script against req (read-only) and view
// (mutable), choosing the engine by source shape: a leading `function`
// token routes to the JavaScript engine, anything else is evaluated as a
// Rhai-family expression that returns a partial response object merged
// into view.
func Decorate(source string, req *domain.Request, view *ResponseView) error {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "function") {
		return decorateJS(trimmed, req, view)
	}
	return decorateExpr(trimmed, req, view)
}

func requestEnv(req *domain.Request) map[string]interface{} {
	return map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"query":       valuesEnv(req.Query),
		"headers":     valuesEnv(req.Headers),
		"body":        req.Body,
		"requestFrom": req.RequestFrom,
		"ip":          req.IP,
	}
}

func valuesEnv(v map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(v))
	for k, vals := range v {
		out[k] = vals
	}
	return out
}

func decorateJS(source string, req *domain.Request, view *ResponseView) error {
	vm := goja.New()

	responseObj := map[string]interface{}{
		"statusCode": view.StatusCode,
		"headers":    view.Headers,
		"body":       view.Body,
	}
	if err := vm.Set("request", requestEnv(req)); err != nil {
		return fmt.Errorf("decorate: bind request: %w", err)
	}
	if err := vm.Set("response", responseObj); err != nil {
		return fmt.Errorf("decorate: bind response: %w", err)
	}

	if _, err := vm.RunString("(" + source + ")(request, response);"); err != nil {
		return fmt.Errorf("decorate: %w", err)
	}

	result := vm.Get("response").Export()
	merged, ok := result.(map[string]interface{})
	if !ok {
		return fmt.Errorf("decorate: script did not leave response as an object")
	}
	applyResponseFields(merged, view)
	return nil
}

func decorateExpr(source string, req *domain.Request, view *ResponseView) error {
	env := map[string]interface{}{
		"request": requestEnv(req),
		"response": map[string]interface{}{
			"statusCode": view.StatusCode,
			"headers":    view.Headers,
			"body":       view.Body,
		},
	}
	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return fmt.Errorf("decorate: compile: %w", err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("decorate: eval: %w", err)
	}
	merged, ok := out.(map[string]interface{})
	if !ok {
		// An expression that doesn't return a partial response object is
		// treated as a no-op decorate (it may only have had side effects
		// on flow-state via other behaviors).
		return nil
	}
	applyResponseFields(merged, view)
	return nil
}

func applyResponseFields(merged map[string]interface{}, view *ResponseView) {
	if sc, ok := merged["statusCode"]; ok {
		switch v := sc.(type) {
		case int64:
			view.StatusCode = int(v)
		case float64:
			view.StatusCode = int(v)
		case int:
			view.StatusCode = v
		}
	}
	if h, ok := merged["headers"].(map[string]interface{}); ok {
		view.Headers = h
	}
	if b, ok := merged["body"]; ok {
		view.Body = b
	}
}
