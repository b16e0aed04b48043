package transport

import (
	"net"
	"testing"
	"time"
)

func TestDialUDPEphemeralPortRoundTrip(t *testing.T) {
	server, err := DialUDP(0, "", 0)
	if err != nil {
		t.Fatalf("DialUDP(server) failed: %v", err)
	}
	defer server.Close()

	serverAddr := server.conn.LocalAddr().(*net.UDPAddr)

	client, err := DialUDP(0, "127.0.0.1", serverAddr.Port)
	if err != nil {
		t.Fatalf("DialUDP(client) failed: %v", err)
	}
	defer client.Close()

	msg := []byte("hello wingbridge")
	if _, err := client.Write(msg); err != nil {
		t.Fatalf("client.Write failed: %v", err)
	}

	buf := make([]byte, 64)
	var n int
	for i := 0; i < 50; i++ {
		n, err = server.Read(buf)
		if err != nil {
			t.Fatalf("server.Read failed: %v", err)
		}
		if n > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if n != len(msg) {
		t.Fatalf("server read %d bytes, want %d", n, len(msg))
	}
	if string(buf[:n]) != string(msg) {
		t.Errorf("server read %q, want %q", buf[:n], msg)
	}
	if !server.Connected() {
		t.Error("server should latch the peer address as connected after a Read")
	}
}

func TestUDPReadWithNoDataIsNotAnError(t *testing.T) {
	u, err := DialUDP(0, "", 0)
	if err != nil {
		t.Fatalf("DialUDP failed: %v", err)
	}
	defer u.Close()

	buf := make([]byte, 16)
	n, err := u.Read(buf)
	if err != nil {
		t.Errorf("Read with no data should not return an error, got %v", err)
	}
	if n != 0 {
		t.Errorf("Read with no data should return n=0, got %d", n)
	}
}

func TestUDPWriteWithNoRemoteIsNoOp(t *testing.T) {
	u, err := DialUDP(0, "", 0)
	if err != nil {
		t.Fatalf("DialUDP failed: %v", err)
	}
	defer u.Close()

	n, err := u.Write([]byte("nobody listening"))
	if err != nil {
		t.Errorf("Write with no remote configured should not error, got %v", err)
	}
	if n != 0 {
		t.Errorf("Write with no remote configured should write 0 bytes, got %d", n)
	}
}

func TestUDPAvailableForWriteAndPacketTimeout(t *testing.T) {
	u, err := DialUDP(0, "", 0)
	if err != nil {
		t.Fatalf("DialUDP failed: %v", err)
	}
	defer u.Close()

	if u.AvailableForWrite() != 65507 {
		t.Errorf("AvailableForWrite() = %d, want 65507", u.AvailableForWrite())
	}
	if u.HasPacketTimeout() {
		t.Error("HasPacketTimeout() should always be false for a datagram transport")
	}
}
