package downloader

import (
	"bytes"
	"errors"
	"io"
	"testing"

	igdlhttp "github.com/Yumeka433/igdl/internal/http"
	"github.com/Yumeka433/igdl/internal/progress"
)

// fakeBody serves a fixed list of chunks, optionally ending in an error.
type fakeBody struct {
	chunks      [][]byte
	err         error
	incremental bool
	reads       int
	onRead      func(n int)
}

func (b *fakeBody) Incremental() bool { return b.incremental }

func (b *fakeBody) Next() ([]byte, error) {
	b.reads++
	if b.onRead != nil {
		b.onRead(b.reads)
	}
	if len(b.chunks) == 0 {
		if b.err != nil {
			return nil, b.err
		}
		return nil, io.EOF
	}
	c := b.chunks[0]
	b.chunks = b.chunks[1:]
	return c, nil
}

func (b *fakeBody) ReadAll() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return bytes.Join(b.chunks, nil), nil
}

type flag bool

func (f *flag) Signalled() bool { return bool(*f) }

func TestReadKnownTotal(t *testing.T) {
	body := &fakeBody{
		chunks:      [][]byte{bytes.Repeat([]byte("a"), 500), bytes.Repeat([]byte("b"), 500)},
		incremental: true,
	}
	var sig flag
	est := progress.NewEstimator(1000, progress.DefaultPolicy())

	var updates []Update
	res, err := Read(body, &sig, est, Options{OnChunk: func(u Update) { updates = append(updates, u) }})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(res.Chunks))
	}
	if res.Chunks[0][0] != 'a' || res.Chunks[1][0] != 'b' {
		t.Error("chunks out of order")
	}
	if res.Received != 1000 || res.Percent != 100 {
		t.Errorf("expected 1000 bytes at 100%%, got %d at %d%%", res.Received, res.Percent)
	}

	want := []Update{{500, 1000, 50}, {1000, 1000, 100}}
	if len(updates) != len(want) {
		t.Fatalf("expected %v, got %v", want, updates)
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Errorf("update %d: expected %+v, got %+v", i, want[i], updates[i])
		}
	}
}

func TestReadUnknownTotal(t *testing.T) {
	var chunks [][]byte
	for i := 0; i < 100; i++ {
		chunks = append(chunks, []byte("xx"))
	}
	body := &fakeBody{chunks: chunks, incremental: true}
	var sig flag
	est := progress.NewEstimator(0, progress.DefaultPolicy())

	res, err := Read(body, &sig, est, Options{OnChunk: func(u Update) {
		if u.Percent > 95 {
			t.Fatalf("progress %d exceeds cap before completion", u.Percent)
		}
		if u.Total != 0 {
			t.Fatalf("expected unknown total, got %d", u.Total)
		}
	}})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.Percent != 100 {
		t.Errorf("expected 100 at completion, got %d", res.Percent)
	}
	if res.Received != 200 {
		t.Errorf("expected 200 bytes, got %d", res.Received)
	}
}

func TestReadCancelled(t *testing.T) {
	var sig flag
	body := &fakeBody{
		chunks:      [][]byte{[]byte("one"), []byte("two"), []byte("three")},
		incremental: true,
	}
	est := progress.NewEstimator(11, progress.DefaultPolicy())

	calls := 0
	_, err := Read(body, &sig, est, Options{OnChunk: func(Update) {
		calls++
		sig = true
	}})
	if !errors.Is(err, igdlhttp.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected reading to stop after the first chunk, got %d updates", calls)
	}
	if body.reads != 1 {
		t.Errorf("expected no read after cancellation, got %d reads", body.reads)
	}
}

func TestReadCancelledBeforeStart(t *testing.T) {
	sig := flag(true)
	body := &fakeBody{chunks: [][]byte{[]byte("x")}, incremental: true}
	_, err := Read(body, &sig, progress.NewEstimator(1, progress.DefaultPolicy()), Options{})
	if !errors.Is(err, igdlhttp.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if body.reads != 0 {
		t.Errorf("expected no reads, got %d", body.reads)
	}
}

func TestReadStreamError(t *testing.T) {
	var sig flag
	body := &fakeBody{
		chunks:      [][]byte{[]byte("partial")},
		err:         io.ErrUnexpectedEOF,
		incremental: true,
	}
	_, err := Read(body, &sig, progress.NewEstimator(100, progress.DefaultPolicy()), Options{})

	var serr *igdlhttp.StreamError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if serr.Received != 7 {
		t.Errorf("expected 7 bytes received, got %d", serr.Received)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected cause to be preserved")
	}
}

func TestReadErrorAfterCancelIsCancellation(t *testing.T) {
	var sig flag
	body := &fakeBody{err: errors.New("connection reset"), incremental: true}
	body.onRead = func(int) { sig = true }

	_, err := Read(body, &sig, progress.NewEstimator(0, progress.DefaultPolicy()), Options{})
	if !errors.Is(err, igdlhttp.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestReadWholeBody(t *testing.T) {
	var sig flag
	body := &fakeBody{chunks: [][]byte{[]byte("hello "), []byte("world")}}
	est := progress.NewEstimator(0, progress.DefaultPolicy())

	res, err := Read(body, &sig, est, Options{OnChunk: func(Update) {
		t.Error("whole-body path must not report intermediate progress")
	}})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.Received != 11 || res.Percent != 100 {
		t.Errorf("expected 11 bytes at 100%%, got %d at %d%%", res.Received, res.Percent)
	}
	if len(res.Chunks) != 1 || string(res.Chunks[0]) != "hello world" {
		t.Errorf("unexpected chunks %q", res.Chunks)
	}
}

func TestReadWholeBodyError(t *testing.T) {
	var sig flag
	body := &fakeBody{err: io.ErrUnexpectedEOF}
	_, err := Read(body, &sig, progress.NewEstimator(0, progress.DefaultPolicy()), Options{})

	var serr *igdlhttp.StreamError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
}

func TestReadEmptyBody(t *testing.T) {
	var sig flag
	body := &fakeBody{incremental: true}
	res, err := Read(body, &sig, progress.NewEstimator(0, progress.DefaultPolicy()), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Chunks) != 0 || res.Received != 0 || res.Percent != 100 {
		t.Errorf("unexpected result %+v", res)
	}
}
