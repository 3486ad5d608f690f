package testutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// MockInput is one input served by MockOBS. Items are the choices of its
// window property.
type MockInput struct {
	Name  string
	Kind  string
	Items []MockItem
}

// MockItem is one property list choice.
type MockItem struct {
	Name    string
	Value   string
	Enabled bool
}

// MockOBS is an httptest server speaking enough of OBS WebSocket v5 for the
// window listing requests.
type MockOBS struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	password string
	version  string
	inputs   []MockInput
	failCode int
	requests []string
}

const (
	mockChallenge = "testchallenge"
	mockSalt      = "testsalt"
)

// NewMockOBS starts a server. Close it with Close.
func NewMockOBS() *MockOBS {
	m := &MockOBS{version: "5.1.0"}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := m.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		m.handleConnection(conn)
	}))
	return m
}

// URL returns the ws:// address of the server.
func (m *MockOBS) URL() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

func (m *MockOBS) Close() {
	m.server.Close()
}

// RequirePassword makes the server demand authentication.
func (m *MockOBS) RequirePassword(password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.password = password
}

// SetVersion changes the obsWebSocketVersion announced in Hello.
func (m *MockOBS) SetVersion(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
}

// SetInputs replaces the inputs reported by GetInputList.
func (m *MockOBS) SetInputs(inputs ...MockInput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = inputs
}

// FailRequests answers every request with result=false and code.
func (m *MockOBS) FailRequests(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCode = code
}

// Requests returns the request types received, in order.
func (m *MockOBS) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

type mockMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

func (m *MockOBS) handleConnection(conn *websocket.Conn) {
	m.mu.Lock()
	password := m.password
	version := m.version
	m.mu.Unlock()

	hello := map[string]interface{}{"obsWebSocketVersion": version, "rpcVersion": 1}
	if password != "" {
		hello["authentication"] = map[string]string{"challenge": mockChallenge, "salt": mockSalt}
	}
	if err := writeMock(conn, 0, hello); err != nil {
		return
	}

	var identify mockMessage
	if err := conn.ReadJSON(&identify); err != nil || identify.Op != 1 {
		return
	}
	if password != "" {
		var data struct {
			Authentication string `json:"authentication"`
		}
		_ = json.Unmarshal(identify.D, &data)
		if data.Authentication != expectedAuth(password) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(4009, "Authentication failed."))
			return
		}
	}
	if err := writeMock(conn, 2, map[string]interface{}{"negotiatedRpcVersion": 1}); err != nil {
		return
	}

	for {
		var msg mockMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Op != 6 {
			continue
		}
		var req struct {
			RequestType string                 `json:"requestType"`
			RequestID   string                 `json:"requestId"`
			RequestData map[string]interface{} `json:"requestData"`
		}
		if err := json.Unmarshal(msg.D, &req); err != nil {
			return
		}
		if err := writeMock(conn, 7, m.respond(req.RequestType, req.RequestID, req.RequestData)); err != nil {
			return
		}
	}
}

func (m *MockOBS) respond(requestType, requestID string, data map[string]interface{}) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, requestType)

	resp := map[string]interface{}{"requestType": requestType, "requestId": requestID}
	status := map[string]interface{}{"result": true, "code": 100}
	resp["requestStatus"] = status

	if m.failCode != 0 {
		status["result"] = false
		status["code"] = m.failCode
		status["comment"] = "mock failure"
		return resp
	}

	switch requestType {
	case "GetInputList":
		inputs := make([]map[string]string, 0, len(m.inputs))
		for _, in := range m.inputs {
			inputs = append(inputs, map[string]string{
				"inputName":            in.Name,
				"inputKind":            in.Kind,
				"unversionedInputKind": in.Kind,
			})
		}
		resp["responseData"] = map[string]interface{}{"inputs": inputs}
	case "GetInputPropertiesListPropertyItems":
		name, _ := data["inputName"].(string)
		for _, in := range m.inputs {
			if in.Name != name {
				continue
			}
			items := make([]map[string]interface{}, 0, len(in.Items))
			for _, it := range in.Items {
				items = append(items, map[string]interface{}{
					"itemName":    it.Name,
					"itemValue":   it.Value,
					"itemEnabled": it.Enabled,
				})
			}
			resp["responseData"] = map[string]interface{}{"propertyItems": items}
			return resp
		}
		status["result"] = false
		status["code"] = 600
		status["comment"] = "No source was found by the name of `" + name + "`."
	default:
		status["result"] = false
		status["code"] = 204
		status["comment"] = "Your request type is not valid."
	}
	return resp
}

func writeMock(conn *websocket.Conn, op int, d interface{}) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return conn.WriteJSON(mockMessage{Op: op, D: raw})
}

func expectedAuth(password string) string {
	secret := sha256.Sum256([]byte(password + mockSalt))
	auth := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(secret[:]) + mockChallenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}
