package behavior

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/oriys/rift/internal/domain"
)

// ShellTransform spawns cmdLine as a shell command with the request and
// current response serialized into MB_REQUEST/MB_RESPONSE environment
// variables, per mountebank-family convention. Stdout replaces view.Body;
// a nonzero exit fails the behavior with the child's stderr.
func ShellTransform(ctx context.Context, cmdLine string, req *domain.Request, view *ResponseView) error {
	reqJSON, err := json.Marshal(requestEnv(req))
	if err != nil {
		return fmt.Errorf("shellTransform: marshal request: %w", err)
	}
	respJSON, err := json.Marshal(map[string]interface{}{
		"statusCode": view.StatusCode,
		"headers":    view.Headers,
		"body":       view.Body,
	})
	if err != nil {
		return fmt.Errorf("shellTransform: marshal response: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	cmd.Env = append(os.Environ(),
		"MB_REQUEST="+string(reqJSON),
		"MB_RESPONSE="+string(respJSON),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("shellTransform: timed out")
		}
		return fmt.Errorf("shellTransform: %s: %s", err, stderr.String())
	}

	view.Body = stdout.String()
	return nil
}
