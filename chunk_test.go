package webserv

import (
	"bytes"
	"testing"
)

func TestChunkRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("hi"),
		bytes.Repeat([]byte("ab"), 5000),
	}
	for _, body := range cases {
		encoded := EncodeChunked(body, 7)
		d := newChunkDecoder()
		if err := d.Feed(encoded); err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if !d.Done() {
			t.Fatalf("decoder not done for body len %d", len(body))
		}
		if !bytes.Equal(d.Body(), body) {
			t.Fatalf("round trip mismatch: got %q want %q", d.Body(), body)
		}
	}
}

func TestChunkSplitAcrossReads(t *testing.T) {
	encoded := EncodeChunked([]byte("hello world"), 4)
	d := newChunkDecoder()
	for i := 0; i < len(encoded); i++ {
		if err := d.Feed(encoded[i : i+1]); err != nil {
			t.Fatalf("Feed byte %d: %v", i, err)
		}
	}
	if !d.Done() {
		t.Fatal("decoder should be done")
	}
	if string(d.Body()) != "hello world" {
		t.Fatalf("got %q", d.Body())
	}
}

func TestChunkMalformedSize(t *testing.T) {
	d := newChunkDecoder()
	err := d.Feed([]byte("zzzz\r\ndata\r\n"))
	if err != ErrChunkMalformed {
		t.Fatalf("expected ErrChunkMalformed, got %v", err)
	}
}
