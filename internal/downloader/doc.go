// Package downloader drives the read loop of a single response body.
//
// The loop checks a cancellation signal before every read, appends each
// chunk in transport order and only then advances the progress estimator,
// so an observer never sees progress ahead of buffered data.
//
// # Usage
//
//	est := progress.NewEstimator(resp.Meta.ContentLength, progress.DefaultPolicy())
//	res, err := downloader.Read(resp.Body, token, est, downloader.Options{
//	    OnChunk: func(u downloader.Update) { ... },
//	})
//
// # Whole-body fallback
//
// When the body is not incremental the entire body is read at once, the
// received count becomes the observed size and progress jumps straight to
// 100 without intermediate updates.
package downloader
