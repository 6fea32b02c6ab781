package rpchost

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
)

func newTestHost(t *testing.T, self string) *Host {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	adapter := kvstore.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := config.FromEnv("")
	client := broker.New(adapter, cfg, self, zerolog.Nop())
	return New(client, cfg, self, zerolog.Nop())
}

func serveOneLine(t *testing.T, h *Host, line string) map[string]interface{} {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(line + "\n")
	if err := h.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshaling response %q: %v", out.String(), err)
	}
	return resp
}

func TestInitialize(t *testing.T) {
	h := newTestHost(t, "backend")
	resp := serveOneLine(t, h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if _, ok := resp["result"]; !ok {
		t.Fatalf("initialize response = %v, want a result field", resp)
	}
}

func TestUnknownMethod(t *testing.T) {
	h := newTestHost(t, "backend")
	resp := serveOneLine(t, h, `{"jsonrpc":"2.0","id":1,"method":"bogus"}`)
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response = %v, want an error field", resp)
	}
	if int(errObj["code"].(float64)) != codeMethodNotFound {
		t.Fatalf("error code = %v, want %d", errObj["code"], codeMethodNotFound)
	}
}

func TestMalformedLineSkipped(t *testing.T) {
	h := newTestHost(t, "backend")
	var out bytes.Buffer
	in := strings.NewReader("not json\n\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"initialize\"}\n")
	if err := h.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d response lines, want exactly 1 (malformed and blank lines skipped)", len(lines))
	}
}

func TestPublishThenCheckViaToolsCall(t *testing.T) {
	h := newTestHost(t, "backend")

	publishReq := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"coord_publish_message","arguments":{"msg_type":"READY_FOR_REVIEW","subject":"s","description":"d","to_instance":"orchestrator"}}}`
	resp := serveOneLine(t, h, publishReq)
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("publish response = %v, want a result", resp)
	}
	content := result["content"].([]interface{})[0].(map[string]interface{})
	var publishBody map[string]interface{}
	if err := json.Unmarshal([]byte(content["text"].(string)), &publishBody); err != nil {
		t.Fatalf("unmarshaling publish body: %v", err)
	}
	if publishBody["success"] != true {
		t.Fatalf("publish body = %v, want success=true", publishBody)
	}

	checkReq := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"coord_check_messages","arguments":{"to_instance":"orchestrator"}}}`
	resp = serveOneLine(t, h, checkReq)
	result = resp["result"].(map[string]interface{})
	content = result["content"].([]interface{})[0].(map[string]interface{})
	var checkBody map[string]interface{}
	if err := json.Unmarshal([]byte(content["text"].(string)), &checkBody); err != nil {
		t.Fatalf("unmarshaling check body: %v", err)
	}
	if int(checkBody["count"].(float64)) != 1 {
		t.Fatalf("check count = %v, want 1", checkBody["count"])
	}
}

func TestPublishRejectsInvalidType(t *testing.T) {
	h := newTestHost(t, "backend")
	req := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"coord_publish_message","arguments":{"msg_type":"INVALID_TYPE","subject":"x","description":"y"}}}`
	resp := serveOneLine(t, h, req)
	result := resp["result"].(map[string]interface{})
	content := result["content"].([]interface{})[0].(map[string]interface{})
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(content["text"].(string)), &body); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("body = %v, want success=false", body)
	}
	if body["error"] != "Invalid message type: INVALID_TYPE" {
		t.Fatalf("error = %v, want %q", body["error"], "Invalid message type: INVALID_TYPE")
	}
	if _, ok := body["valid_types"]; !ok {
		t.Fatal("body missing valid_types")
	}
}

func TestGetNotificationsZeroLimitReturnsEmptyWithoutDraining(t *testing.T) {
	h := newTestHost(t, "backend")

	publishReq := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"coord_publish_message","arguments":{"msg_type":"GENERAL","subject":"s","description":"d","to_instance":"backend"}}}`
	serveOneLine(t, h, publishReq)

	zeroReq := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"coord_get_notifications","arguments":{"limit":0}}}`
	resp := serveOneLine(t, h, zeroReq)
	result := resp["result"].(map[string]interface{})
	content := result["content"].([]interface{})[0].(map[string]interface{})
	var zeroBody map[string]interface{}
	if err := json.Unmarshal([]byte(content["text"].(string)), &zeroBody); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if int(zeroBody["count"].(float64)) != 0 {
		t.Fatalf("coord_get_notifications(limit=0) count = %v, want 0", zeroBody["count"])
	}

	drainReq := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"coord_get_notifications","arguments":{}}}`
	resp = serveOneLine(t, h, drainReq)
	result = resp["result"].(map[string]interface{})
	content = result["content"].([]interface{})[0].(map[string]interface{})
	var drainBody map[string]interface{}
	if err := json.Unmarshal([]byte(content["text"].(string)), &drainBody); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if int(drainBody["count"].(float64)) != 1 {
		t.Fatalf("drain after zero-limit call count = %v, want 1 (queue should be untouched)", drainBody["count"])
	}
}
