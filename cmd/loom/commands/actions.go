package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/ports"
)

// actionFunc is the body of a builtin pipeline action.
type actionFunc func(ctx *engine.Ctx, params map[string]any) (any, error)

// actions maps action names to their bodies. Every action reads only
// the capabilities its step declared; an undeclared port surfaces as a
// structural error rather than a nil dereference.
var actions = map[string]actionFunc{
	"log":           actionLog,
	"sleep":         actionSleep,
	"uuid":          actionUUID,
	"http.request":  actionHTTPRequest,
	"kv.get":        actionKVGet,
	"kv.set":        actionKVSet,
	"kv.delete":     actionKVDelete,
	"db.query":      actionDBQuery,
	"db.exec":       actionDBExec,
	"queue.publish": actionQueuePublish,
	"queue.consume": actionQueueConsume,
	"tempdir.write": actionTempDirWrite,
}

// buildStep turns a pipeline step spec into an executable step.
func buildStep(spec config.StepSpec) (engine.Step, error) {
	m, err := spec.BuildMeta()
	if err != nil {
		return engine.Step{}, err
	}
	fn, ok := actions[spec.Action]
	if !ok {
		return engine.Step{}, fault.Structural(fmt.Sprintf("unknown action %q", spec.Action), nil)
	}
	params := spec.Params
	return engine.Step{
		Name: spec.Name,
		Meta: m,
		Run: func(ctx *engine.Ctx) (any, error) {
			return fn(ctx, params)
		},
	}, nil
}

func strParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func needParam(params map[string]any, key string) (string, error) {
	s := strParam(params, key)
	if s == "" {
		return "", fault.Structural(fmt.Sprintf("action requires parameter %q", key), nil)
	}
	return s, nil
}

func undeclared(port string) error {
	return fault.Structural(fmt.Sprintf("step does not declare the %q capability", port), nil)
}

func actionLog(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.Log == nil {
		return nil, undeclared("log")
	}
	msg, err := needParam(params, "message")
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"step": ctx.Step}
	switch strParam(params, "level") {
	case "debug":
		ctx.Caps.Log.Debug(msg, fields)
	case "warn":
		ctx.Caps.Log.Warn(msg, fields)
	case "error":
		ctx.Caps.Log.Error(msg, fields)
	default:
		ctx.Caps.Log.Info(msg, fields)
	}
	return msg, nil
}

func actionSleep(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.Clock == nil {
		return nil, undeclared("time")
	}
	ms := intParam(params, "ms")
	if err := ctx.Caps.Clock.Sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return nil, err
	}
	return ms, nil
}

func actionUUID(ctx *engine.Ctx, _ map[string]any) (any, error) {
	if ctx.Caps.Crypto == nil {
		return nil, undeclared("crypto")
	}
	return ctx.Caps.Crypto.UUID(), nil
}

func actionHTTPRequest(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.HTTP == nil {
		return nil, undeclared("http")
	}
	url, err := needParam(params, "url")
	if err != nil {
		return nil, err
	}
	req := ports.Request{
		Method: strParam(params, "method"),
		URL:    url,
	}
	if body := strParam(params, "body"); body != "" {
		req.Body = []byte(body)
	}
	res, err := ctx.Caps.HTTP.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": res.Status, "body": string(res.Body)}, nil
}

func actionKVGet(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.KV == nil {
		return nil, undeclared("kv")
	}
	key, err := needParam(params, "key")
	if err != nil {
		return nil, err
	}
	val, ok, err := ctx.Caps.KV.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return string(val), nil
}

func actionKVSet(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.KV == nil {
		return nil, undeclared("kv")
	}
	key, err := needParam(params, "key")
	if err != nil {
		return nil, err
	}
	value := strParam(params, "value")
	ttl := time.Duration(intParam(params, "ttlSeconds")) * time.Second
	if err := ctx.Caps.KV.Set(ctx, key, []byte(value), ttl); err != nil {
		return nil, err
	}
	return key, nil
}

func actionKVDelete(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.KV == nil {
		return nil, undeclared("kv")
	}
	key, err := needParam(params, "key")
	if err != nil {
		return nil, err
	}
	if err := ctx.Caps.KV.Delete(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

func actionDBQuery(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.DB == nil {
		return nil, undeclared("db")
	}
	query, err := needParam(params, "query")
	if err != nil {
		return nil, err
	}
	rows, err := ctx.Caps.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func actionDBExec(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.DB == nil {
		return nil, undeclared("db")
	}
	query, err := needParam(params, "query")
	if err != nil {
		return nil, err
	}
	return ctx.Caps.DB.Exec(ctx, query)
}

func actionQueuePublish(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.Queue == nil {
		return nil, undeclared("queue")
	}
	msg, err := needParam(params, "message")
	if err != nil {
		return nil, err
	}
	if err := ctx.Caps.Queue.Publish(ctx, strParam(params, "topic"), []byte(msg)); err != nil {
		return nil, err
	}
	return msg, nil
}

func actionQueueConsume(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.Queue == nil {
		return nil, undeclared("queue")
	}
	msg, err := ctx.Caps.Queue.Consume(ctx, strParam(params, "topic"))
	if err != nil {
		return nil, err
	}
	return string(msg), nil
}

// actionTempDirWrite writes a file inside a leased temporary
// directory. The directory is removed when the bracket releases, so
// the action's value is the number of bytes written, not the path.
func actionTempDirWrite(ctx *engine.Ctx, params map[string]any) (any, error) {
	if ctx.Caps.Lease.TempDir == nil {
		return nil, undeclared("fs")
	}
	name := strParam(params, "filename")
	if name == "" {
		name = "out.txt"
	}
	content := strParam(params, "content")

	var written int
	err := ctx.Caps.WithTempDir(ctx, func(_ context.Context, dir string) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return err
		}
		written = len(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}
