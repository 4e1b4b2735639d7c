package scriptpool

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/oriys/rift/internal/domain"
)

type compiledExpr struct {
	program *vm.Program
}

// compileExpr compiles a Rhai-family expression once. The expression is
// expected to evaluate to a should_inject decision map directly (Rhai
// scripts in this family are single expressions, not function bodies, so
// there's no separate "call should_inject" step the way JS/Lua have).
func compileExpr(source string) (Compiled, error) {
	program, err := expr.Compile(source, expr.Env(exprEnvShape()))
	if err != nil {
		return nil, fmt.Errorf("scriptpool: rhai compile: %w", err)
	}
	return &compiledExpr{program: program}, nil
}

func exprEnvShape() map[string]interface{} {
	return map[string]interface{}{
		"request": map[string]interface{}{},
		"flow":    exprFlowFuncs(nil),
	}
}

func exprFlowFuncs(store *BoundFlow) map[string]interface{} {
	return map[string]interface{}{
		"get": func(key string) interface{} {
			if store == nil {
				return nil
			}
			val, ok, _ := store.Get(key)
			if !ok {
				return nil
			}
			var decoded interface{}
			if err := json.Unmarshal(val, &decoded); err != nil {
				return string(val)
			}
			return decoded
		},
		"exists": func(key string) bool {
			if store == nil {
				return false
			}
			ok, _ := store.Exists(key)
			return ok
		},
		"increment": func(key string) int64 {
			if store == nil {
				return 0
			}
			n, _ := store.Increment(key)
			return n
		},
		"set": func(key string, value interface{}) bool {
			if store == nil {
				return false
			}
			raw, err := json.Marshal(value)
			if err != nil {
				return false
			}
			return store.Set(key, raw) == nil
		},
	}
}

func (c *compiledExpr) ShouldInject(req *domain.Request, store *BoundFlow) (Decision, error) {
	env := map[string]interface{}{
		"request": requestEnvJS(req),
		"flow":    exprFlowFuncs(store),
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return Decision{}, fmt.Errorf("scriptpool: rhai: %w", err)
	}
	return decodeDecision(out)
}
