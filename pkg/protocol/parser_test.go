package protocol

import (
	"bufio"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestParser_ParseRequest(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name       string
		input      string
		wantMethod string
		wantID     string
		wantNotify bool
		wantErr    bool
	}{
		{
			name:       "request with id",
			input:      `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`,
			wantMethod: "ping",
			wantID:     "1",
		},
		{
			name:       "string id",
			input:      `{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`,
			wantMethod: "tools/list",
			wantID:     `"abc"`,
		},
		{
			name:       "notification",
			input:      `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			wantMethod: "notifications/initialized",
			wantNotify: true,
		},
		{
			name:       "initialize without id",
			input:      `{"jsonrpc":"2.0","method":"initialize"}`,
			wantMethod: "initialize",
			wantID:     "null",
		},
		{
			name:    "missing method",
			input:   `{"jsonrpc":"2.0","id":1}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			input:   `{"jsonrpc":`,
			wantErr: true,
		},
		{
			name:    "not an object",
			input:   `[1,2]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parser.ParseRequest([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseRequest() expected error")
				}
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Errorf("ParseRequest() error type = %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method = %s, want %s", req.Method, tt.wantMethod)
			}
			if req.IsNotification() != tt.wantNotify {
				t.Errorf("IsNotification() = %v, want %v", req.IsNotification(), tt.wantNotify)
			}
			if !tt.wantNotify && string(req.ResponseID()) != tt.wantID {
				t.Errorf("ResponseID() = %s, want %s", req.ResponseID(), tt.wantID)
			}
			if tt.wantNotify && req.ResponseID() != nil {
				t.Errorf("Notification ResponseID() = %s, want nil", req.ResponseID())
			}
		})
	}
}

func TestReadMessage_Framed(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	input := "\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\nContent-Type: application/json\r\n\r\n" + body
	r := bufio.NewReader(strings.NewReader(input))

	msg, err := ReadMessage(r)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !msg.Framed() || len(msg.Headers) != 2 {
		t.Errorf("Headers = %v", msg.Headers)
	}
	if string(msg.Body) != body {
		t.Errorf("Body = %s", msg.Body)
	}

	msg, err = ReadMessage(r)
	if err != nil || msg != nil {
		t.Errorf("Expected EOF, got %v, %v", msg, err)
	}
}

func TestReadMessage_LineDelimited(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\n{\"id\":1,\"method\":\"ping\"}\n{\"id\":2,\"method\":\"ping\"}"))

	for i := 1; i <= 2; i++ {
		msg, err := ReadMessage(r)
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if msg.Framed() {
			t.Errorf("Message %d should not be framed", i)
		}
		if !strings.Contains(string(msg.Body), "\"id\":"+strconv.Itoa(i)) {
			t.Errorf("Body = %s", msg.Body)
		}
	}
}

func TestReadMessage_Errors(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(strings.NewReader("X-Foo: bar\r\n\r\n{}")))
	if !errors.Is(err, ErrMissingContentLength) {
		t.Errorf("Expected ErrMissingContentLength, got %v", err)
	}

	_, err = ReadMessage(bufio.NewReader(strings.NewReader("Content-Length: abc\r\n\r\n")))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Expected ParseError, got %v", err)
	}

	_, err = ReadMessage(bufio.NewReader(strings.NewReader("Content-Length: 10\r\n\r\n{}")))
	if err == nil {
		t.Error("Expected error for short body")
	}
}
