package channel

import (
	"path/filepath"
	"testing"

	"github.com/bc-dunia/nanotick/internal/sample"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		NewStart(4242),
		NewSampleReq(true),
		NewSampleReq(false),
		NewSampleRes(sample.Sample{Throughput: 1234.5, CustomFields: [sample.NumCustomFields]float64{1, 2, 3, 4}}, 7, 8),
		NewStop(9000, 123456),
		NewStopAck(),
	}
	for _, f := range cases {
		b, err := Encode(f)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", f.Type, err)
		}
		if len(b) != FrameSize() {
			t.Fatalf("Encode(%v) produced %d bytes, want %d", f.Type, len(b), FrameSize())
		}
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != f {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
		}
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	if _, err := Decode(make([]byte, FrameSize()-1)); err == nil {
		t.Fatal("Decode with short buffer should have failed")
	}
}

func TestUnixgramBindConnectSendRecv(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "nanotick.sock")

	server, err := Bind("ipc://" + sock)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	defer server.Close()

	client, err := Connect("ipc://" + sock)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	want := NewStart(99)
	done := make(chan error, 1)
	go func() { done <- client.Send(want) }()

	got, err := server.Recv()
	if err != nil {
		t.Fatalf("server Recv failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("client Send failed: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	reply := NewSampleRes(sample.Sample{Throughput: 42}, 1, 2)
	done = make(chan error, 1)
	go func() { done <- server.Send(reply) }()

	gotReply, err := client.Recv()
	if err != nil {
		t.Fatalf("client Recv failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server Send failed: %v", err)
	}
	if gotReply != reply {
		t.Fatalf("got %+v, want %+v", gotReply, reply)
	}
}
