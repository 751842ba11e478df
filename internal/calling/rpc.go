package calling

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 framing spoken by the calling gateway.

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcMessage is anything the gateway sends: a response (ID set) or a
// notification (Method set, no ID).
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (m *rpcMessage) isNotification() bool {
	return m.ID == "" && m.Method != ""
}

// RPCError is an error reported by the gateway.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Gateway methods and notifications.
const (
	methodSessionCreate    = "session.create"
	methodSessionKeepAlive = "session.keepAlive"
	methodCallJoin         = "call.join"
	methodCallHangUp       = "call.hangUp"

	notifyCallStateChanged = "call.stateChanged"
)

type sessionCreateParams struct {
	ClientID string `json:"clientId"`
}

type sessionCreateResult struct {
	SessionID string `json:"sessionId"`
}

type keepAliveParams struct {
	SessionID string `json:"sessionId"`
}

type joinParams struct {
	SessionID   string         `json:"sessionId"`
	Locator     map[string]any `json:"locator"`
	DisplayName string         `json:"displayName,omitempty"`
	Muted       bool           `json:"muted"`
}

type joinResult struct {
	CallID string `json:"callId"`
	State  string `json:"state"`
}

type hangUpParams struct {
	CallID      string `json:"callId"`
	ForEveryone bool   `json:"forEveryone"`
}

type stateChangedParams struct {
	CallID string `json:"callId"`
	State  string `json:"state"`
}
