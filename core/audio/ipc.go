package audio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	ipcReadDeadline = 2 * time.Second
	ipcMaxRetries   = 3
	ipcRetryDelay   = 100 * time.Millisecond
)

// ipcCommand mpv JSON IPC 请求
type ipcCommand struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

// ipcMessage 同时覆盖响应和事件两种消息
type ipcMessage struct {
	RequestID *int64      `json:"request_id,omitempty"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Event     string      `json:"event,omitempty"`
	Name      string      `json:"name,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	FileError string      `json:"file_error,omitempty"`
}

// ipcClient sends commands over short-lived connections to the mpv socket.
type ipcClient struct {
	socketPath string
	mu         sync.Mutex
	nextID     int64
}

func newIPCClient(socketPath string) *ipcClient {
	return &ipcClient{socketPath: socketPath}
}

func (c *ipcClient) send(command ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < ipcMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(ipcRetryDelay)
		}
		id := atomic.AddInt64(&c.nextID, 1)
		data, err := sendOnce(c.socketPath, ipcCommand{Command: command, RequestID: id})
		if err == nil {
			return data, nil
		}
		if _, ok := err.(mpvError); ok {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ipc command %v failed after %d attempts: %w", command[0], ipcMaxRetries, lastErr)
}

// mpvError is an error reported by mpv itself; retrying does not help.
type mpvError string

func (e mpvError) Error() string { return "mpv error: " + string(e) }

func sendOnce(socketPath string, cmd ipcCommand) (interface{}, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(ipcReadDeadline)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	// 响应之前可能夹杂广播事件，按 request_id 匹配
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event != "" || msg.RequestID == nil || *msg.RequestID != cmd.RequestID {
			continue
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, mpvError(msg.Error)
		}
		return msg.Data, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return nil, fmt.Errorf("read: connection closed before response")
}
