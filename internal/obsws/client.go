// Package obsws is a minimal OBS WebSocket v5 client. camrec only uses it
// to ask OBS which windows its window-capture inputs can see.
package obsws

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/logging"
)

// RequestTimeout bounds the wait for Hello, Identified and every request
// response.
const RequestTimeout = 10 * time.Second

// ErrNotConnected is returned by requests issued before Connect succeeded or
// after the connection dropped.
var ErrNotConnected = errors.New("obs websocket not connected")

// Client represents an OBS WebSocket v5 client
type Client struct {
	url      string
	password string
	logger   *diaglog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	identified bool
	writeMu    sync.Mutex // gorilla allows one concurrent writer

	requestID  int
	responses  map[string]chan *Response
	responseMu sync.Mutex

	readDone chan struct{} // closed when the current reader exits
}

// Message is the envelope of every protocol frame.
type Message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type HelloData struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type IdentifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type Request struct {
	RequestType string      `json:"requestType"`
	RequestID   string      `json:"requestId"`
	RequestData interface{} `json:"requestData,omitempty"`
}

type Response struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment,omitempty"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

// OpCodes for WebSocket protocol
const (
	OpHello           = 0
	OpIdentify        = 1
	OpIdentified      = 2
	OpEvent           = 5
	OpRequest         = 6
	OpRequestResponse = 7
)

// NewClient creates a new OBS WebSocket client
func NewClient(url, password string) *Client {
	return &Client{
		url:       url,
		password:  password,
		logger:    diaglog.NewNoOp(),
		responses: make(map[string]chan *Response),
	}
}

// SetLogger injects a diaglog.Logger. Passing nil disables structured
// logging.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.logger = l
}

// Connect dials OBS and completes the Hello/Identify handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	helloChan := make(chan *HelloData, 1)
	identifiedChan := make(chan struct{}, 1)
	readDone := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.readDone = readDone
	c.mu.Unlock()

	go c.readMessages(conn, helloChan, identifiedChan, readDone)

	select {
	case hello := <-helloChan:
		if err := CheckWebSocketVersion(hello.OBSWebSocketVersion); err != nil {
			c.Close()
			return err
		}
		return c.authenticate(ctx, hello, identifiedChan, readDone)
	case <-readDone:
		c.Close()
		return fmt.Errorf("connection closed before Hello")
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case <-time.After(RequestTimeout):
		c.Close()
		return fmt.Errorf("timeout waiting for Hello message")
	}
}

// authenticate sends Identify message with auth response
func (c *Client) authenticate(ctx context.Context, hello *HelloData, identifiedChan <-chan struct{}, readDone <-chan struct{}) error {
	identify := IdentifyData{RPCVersion: 1}

	if hello.Authentication.Challenge != "" {
		if c.password == "" {
			c.Close()
			return fmt.Errorf("obs websocket requires a password (obs_password)")
		}
		identify.Authentication = authResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}

	msg := Message{Op: OpIdentify}
	msg.D, _ = json.Marshal(identify)
	if err := c.write(msg); err != nil {
		c.Close()
		return err
	}

	select {
	case <-identifiedChan:
		c.mu.Lock()
		c.identified = true
		c.mu.Unlock()
		c.log(diaglog.EventWSConnect, map[string]interface{}{"obs_version": hello.OBSWebSocketVersion})
		logging.Debugw("connected to obs", "url", c.url, "obsWebSocketVersion", hello.OBSWebSocketVersion)
		return nil
	case <-readDone:
		c.Close()
		return fmt.Errorf("identify rejected (wrong obs_password?)")
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case <-time.After(RequestTimeout):
		c.Close()
		return fmt.Errorf("timeout waiting for Identified message")
	}
}

// authResponse computes base64(sha256(base64(sha256(password+salt))+challenge)).
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

// readMessages dispatches frames until the connection fails.
func (c *Client) readMessages(conn *websocket.Conn, helloChan chan<- *HelloData, identifiedChan chan<- struct{}, readDone chan struct{}) {
	defer close(readDone)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.identified = false
			}
			c.mu.Unlock()
			return
		}

		var rawMsg interface{}
		if jerr := json.Unmarshal(msg.D, &rawMsg); jerr == nil {
			c.log(diaglog.EventWSRecv, rawMsg)
		}

		switch msg.Op {
		case OpHello:
			var hello HelloData
			if err := json.Unmarshal(msg.D, &hello); err != nil {
				return
			}
			select {
			case helloChan <- &hello:
			default:
			}

		case OpIdentified:
			select {
			case identifiedChan <- struct{}{}:
			default:
			}

		case OpRequestResponse:
			var resp Response
			if err := json.Unmarshal(msg.D, &resp); err == nil {
				c.handleResponse(&resp)
			}
		}
	}
}

// handleResponse routes responses to waiting request channels
func (c *Client) handleResponse(resp *Response) {
	c.responseMu.Lock()
	ch, ok := c.responses[resp.RequestID]
	c.responseMu.Unlock()
	if ok {
		ch <- resp
	}
}

// sendRequest sends a request and waits for response
func (c *Client) sendRequest(ctx context.Context, requestType string, requestData interface{}) (*Response, error) {
	c.mu.RLock()
	ready := c.conn != nil && c.identified
	readDone := c.readDone
	c.mu.RUnlock()
	if !ready {
		return nil, ErrNotConnected
	}

	c.responseMu.Lock()
	c.requestID++
	requestID := strconv.Itoa(c.requestID)
	respChan := make(chan *Response, 1)
	c.responses[requestID] = respChan
	c.responseMu.Unlock()
	defer func() {
		c.responseMu.Lock()
		delete(c.responses, requestID)
		c.responseMu.Unlock()
	}()

	msg := Message{Op: OpRequest}
	msg.D, _ = json.Marshal(Request{
		RequestType: requestType,
		RequestID:   requestID,
		RequestData: requestData,
	})
	c.log(diaglog.EventWSSend, map[string]interface{}{"request_type": requestType, "request_id": requestID})

	if err := c.write(msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-respChan:
		if !resp.RequestStatus.Result {
			return nil, &RequestError{
				RequestType: requestType,
				Code:        resp.RequestStatus.Code,
				Comment:     resp.RequestStatus.Comment,
			}
		}
		return resp, nil
	case <-readDone:
		return nil, fmt.Errorf("%s: %w", requestType, ErrNotConnected)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(RequestTimeout):
		return nil, fmt.Errorf("request timeout after %s (request: %s)", RequestTimeout, requestType)
	}
}

// RequestError is an OBS request that came back with result=false.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Code == 204 {
		return fmt.Sprintf("OBS rejected request type '%s' (code 204: InvalidRequest), obs-websocket v5 is required. %s",
			e.RequestType, e.Comment)
	}
	return fmt.Sprintf("request failed: %s (request: %s, code: %d)", e.Comment, e.RequestType, e.Code)
}

func (c *Client) write(msg Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Close closes the connection. Safe to call on a closed client.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.identified = false
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.log(diaglog.EventWSDisconnect, map[string]interface{}{"url": c.url})
	if err := conn.Close(); err != nil {
		logging.Warnw("failed to close obs connection", err)
	}
}

// IsConnected returns current connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.identified
}

func (c *Client) log(event string, payload interface{}) {
	c.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOBSClient,
		Event:     event,
		Payload:   payload,
	})
}
