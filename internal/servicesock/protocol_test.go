package servicesock

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func listenUnix(t *testing.T) (*net.UnixListener, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	t.Cleanup(func() { l.Close(); os.Remove(path) })
	return l, path
}

func TestSendGetRecvOK_HappyPath(t *testing.T) {
	l, path := listenUnix(t)

	payload := []byte(`{"in_cnt":1,"out_cnt":1,"in":[{"ifc_id":"a","messages":10,"buffers":2,"ifc_type":2,"ifc_state":1}],"out":[{"ifc_id":"b","sent-messages":20,"dropped-messages":0,"buffers":3,"autoflushes":0,"num_clients":1,"type":2}]}`)

	serverErr := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()

		hdrBuf := make([]byte, headerSize)
		if _, err := conn.Read(hdrBuf); err != nil {
			serverErr <- err
			return
		}
		hdr, err := decodeHeader(hdrBuf)
		if err != nil {
			serverErr <- err
			return
		}
		if hdr.tag != CmdGet {
			serverErr <- err
			return
		}

		reply := encodeHeader(header{tag: CmdOK, dataSize: uint32(len(payload))})
		reply = append(reply, payload...)
		if _, err := conn.Write(reply); err != nil {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := SendGet(conn); err != nil {
		t.Fatalf("SendGet() error = %v", err)
	}
	got, err := RecvOK(conn)
	if err != nil {
		t.Fatalf("RecvOK() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %s, want %s", got, payload)
	}
	if err := <-serverErr; err != nil {
		t.Fatalf("server side error: %v", err)
	}
}

func TestRecvOK_RejectsNonOKTag(t *testing.T) {
	l, path := listenUnix(t)

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io := make([]byte, headerSize)
		conn.Read(io)
		conn.Write(encodeHeader(header{tag: CmdGet, dataSize: 0}))
	}()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := SendGet(conn); err != nil {
		t.Fatalf("SendGet() error = %v", err)
	}
	if _, err := RecvOK(conn); err == nil {
		t.Fatal("expected error for non-OK tag")
	}
}

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	h := header{tag: CmdOK, dataSize: 42}
	buf := encodeHeader(h)
	if len(buf) != headerSize {
		t.Fatalf("encoded header length = %d, want %d", len(buf), headerSize)
	}
	if buf[0] != byte(CmdOK) {
		t.Errorf("tag byte = %d, want %d", buf[0], CmdOK)
	}
	if binary.LittleEndian.Uint32(buf[1:]) != 42 {
		t.Errorf("data_size = %d, want 42", binary.LittleEndian.Uint32(buf[1:]))
	}

	decoded, err := decodeHeader(buf)
	if err != nil {
		t.Fatalf("decodeHeader() error = %v", err)
	}
	if decoded != h {
		t.Errorf("decodeHeader() = %+v, want %+v", decoded, h)
	}
}
