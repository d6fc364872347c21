package unix

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/transport"
)

func TestUnixEcho(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "ps.sock")

	srv := NewUnixDefaultServerTransport()
	srv.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte{byte(shardId)}, req...)
	})
	done := make(chan error, 1)
	go func() {
		done <- srv.Listen(common.ServerConfig{Transport: common.ServerTransportConf{Endpoint: socket}})
	}()

	client := NewUnixClientTransport()
	config := common.ClientConfig{TimeoutSecond: 1, Transport: common.ClientTransportConf{Endpoints: []string{socket}}}

	// the listener is created asynchronously
	var err error
	for i := 0; i < 100; i++ {
		if err = client.Connect(config); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Send(context.Background(), 3, []byte("row"), transport.NewCallPolicy(config, true))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "\x03row" {
		t.Errorf("Expected %q, got %q", "\x03row", resp)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Listen did not return after Close")
	}
}
