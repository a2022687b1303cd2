package downloader

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	igdlhttp "github.com/Yumeka433/igdl/internal/http"
	"github.com/Yumeka433/igdl/internal/progress"
)

// Signal is polled before every read. Once it reports true the read loop
// stops with igdlhttp.ErrCancelled.
type Signal interface {
	Signalled() bool
}

// Body is the response body being consumed. *igdlhttp.Body implements it.
type Body interface {
	// Incremental reports whether Next may be used. When false the whole
	// body is read with ReadAll.
	Incremental() bool

	// Next returns the next chunk, or io.EOF at end of stream.
	Next() ([]byte, error)

	// ReadAll returns the remaining body in one piece.
	ReadAll() ([]byte, error)
}

// Update describes the transfer after a chunk has been buffered.
type Update struct {
	Received int64
	Total    int64 // 0 when unknown
	Percent  int
}

// Result is a completely read body.
type Result struct {
	// Chunks holds the body in transport order.
	Chunks   [][]byte
	Received int64
	Percent  int
}

// Options configures a read.
type Options struct {
	// Logger receives per-chunk trace output. Zero value discards.
	Logger zerolog.Logger

	// OnChunk is called after each chunk has been appended and counted.
	// It is not called on the whole-body path.
	OnChunk func(Update)
}

// Read drains body into an ordered list of chunks, feeding est as it goes.
//
// The signal is checked before each read. A signalled read loop returns
// igdlhttp.ErrCancelled and no result; a failed read returns a
// *igdlhttp.StreamError. On success the estimator has been completed, so
// Result.Percent is 100.
func Read(body Body, sig Signal, est *progress.Estimator, opts Options) (*Result, error) {
	if !body.Incremental() {
		return readAll(body, sig, est)
	}

	var chunks [][]byte
	for {
		if sig.Signalled() {
			return nil, igdlhttp.ErrCancelled
		}

		chunk, err := body.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if sig.Signalled() {
				return nil, igdlhttp.ErrCancelled
			}
			return nil, &igdlhttp.StreamError{Received: est.Received(), Err: err}
		}

		chunks = append(chunks, chunk)
		pct := est.Add(len(chunk))

		opts.Logger.Trace().
			Int("chunk", len(chunks)).
			Int("size", len(chunk)).
			Int64("received", est.Received()).
			Int("percent", pct).
			Msg("chunk buffered")

		if opts.OnChunk != nil {
			opts.OnChunk(Update{Received: est.Received(), Total: est.Total(), Percent: pct})
		}
	}

	return &Result{
		Chunks:   chunks,
		Received: est.Received(),
		Percent:  est.Complete(),
	}, nil
}

func readAll(body Body, sig Signal, est *progress.Estimator) (*Result, error) {
	if sig.Signalled() {
		return nil, igdlhttp.ErrCancelled
	}

	data, err := body.ReadAll()
	if err != nil {
		if sig.Signalled() {
			return nil, igdlhttp.ErrCancelled
		}
		return nil, &igdlhttp.StreamError{Err: err}
	}
	if sig.Signalled() {
		return nil, igdlhttp.ErrCancelled
	}

	est.Add(len(data))

	var chunks [][]byte
	if len(data) > 0 {
		chunks = [][]byte{data}
	}
	return &Result{
		Chunks:   chunks,
		Received: int64(len(data)),
		Percent:  est.Complete(),
	}, nil
}
