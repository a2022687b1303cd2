// Package progress estimates and displays download progress.
//
// [Estimator] converts received byte counts into a monotonic percentage. When
// the server announces a size the percentage is exact; otherwise it advances
// by a fixed step per chunk and stays below a cap until the transfer
// completes.
//
// [Reporter] renders the percentage, byte counts, speed and ETA as a
// refreshing terminal line.
//
// # Usage
//
//	est := progress.NewEstimator(contentLength, progress.DefaultPolicy())
//	for each chunk {
//	    pct := est.Add(len(chunk))
//	}
//	est.Complete() // 100
//
//	reporter := progress.NewReporter(progress.Options{SourceURL: url})
//	reporter.Start()
//	reporter.Update(est.Received(), est.Total(), est.Percent())
//	reporter.Finish("done")
//
// # Output Format
//
//	[igdl] Downloading: https://www.instagram.com/reel/ABC/
//	[igdl] Progress: 45% | 4.5 MiB / 10 MiB | Speed: 1.2 MiB/s | ETA: 5s
package progress
