// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/curation-engine/internal/locator"
)

const isolatedWorldName = "curation-engine"

// rodFrame implements locator.Frame by evaluating the locator scripts in
// one frame. The top frame's main world goes through the page; any other
// frame goes through contextID, which is either the frame's default context
// or an isolated world.
type rodFrame struct {
	page      *rod.Page
	main      bool
	contextID proto.RuntimeExecutionContextID
}

var _ locator.Frame = (*rodFrame)(nil)

// eval runs a function expression and returns its value as JSON text.
func (f *rodFrame) eval(ctx context.Context, js string) (string, error) {
	if f.main {
		obj, err := f.page.Context(ctx).Evaluate(rod.Eval(js).ByPromise())
		if err != nil {
			return "", err
		}
		return obj.Value.JSON("", ""), nil
	}
	res, err := proto.RuntimeCallFunctionOn{
		FunctionDeclaration: js,
		ExecutionContextID:  f.contextID,
		ReturnByValue:       true,
		AwaitPromise:        true,
	}.Call(f.page.Context(ctx))
	if err != nil {
		return "", err
	}
	if res.ExceptionDetails != nil {
		return "", fmt.Errorf("script error: %s", res.ExceptionDetails.Text)
	}
	return res.Result.Value.JSON("", ""), nil
}

func (f *rodFrame) ViewerDetected(ctx context.Context) (bool, error) {
	v, err := f.eval(ctx, locator.ScriptViewerDetected)
	if err != nil {
		return false, err
	}
	return gjson.Parse(v).Bool(), nil
}

func (f *rodFrame) ViewerReady(ctx context.Context) (bool, error) {
	v, err := f.eval(ctx, locator.ScriptViewerReady)
	if err != nil {
		return false, err
	}
	return gjson.Parse(v).Bool(), nil
}

func (f *rodFrame) ViewerData(ctx context.Context) ([]byte, error) {
	v, err := f.eval(ctx, locator.ScriptViewerData)
	if err != nil {
		return nil, err
	}
	return decodeBase64(gjson.Parse(v).String())
}

func (f *rodFrame) FetchSelf(ctx context.Context) (locator.FetchResult, error) {
	v, err := f.eval(ctx, locator.ScriptFetchSelf)
	if err != nil {
		return locator.FetchResult{}, err
	}
	return parseFetchResult(v)
}

func parseFetchResult(v string) (locator.FetchResult, error) {
	doc := gjson.Parse(v)
	if !doc.IsObject() {
		return locator.FetchResult{}, fmt.Errorf("unexpected fetch result: %.80s", v)
	}
	body, err := decodeBase64(doc.Get("body").String())
	if err != nil {
		return locator.FetchResult{}, err
	}
	return locator.FetchResult{
		Status:      int(doc.Get("status").Int()),
		ContentType: doc.Get("contentType").String(),
		Body:        body,
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding frame payload: %w", err)
	}
	return data, nil
}
