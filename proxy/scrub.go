package proxy

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
)

// secretArguments are argument names whose values must never reach the
// debug log.
var secretArguments = []string{
	"api_token",
	"api_key",
	"apiKey",
	"token",
	"password",
	"authorization",
}

// scrubRequest renders a request for logging with credential-bearing
// argument values masked.
func scrubRequest(req *jsonrpc.Request) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return "<unserializable request>"
	}
	for _, key := range secretArguments {
		path := "params.arguments." + key
		if gjson.GetBytes(raw, path).Exists() {
			raw, _ = sjson.SetBytes(raw, path, "***")
		}
	}
	return string(raw)
}
