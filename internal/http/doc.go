// Package http talks to the media download API.
//
// This package handles:
//   - Building requests from user input (method, credentials, attachment)
//   - Issuing a single request and classifying failures
//   - Resolving the target filename from Content-Disposition
//   - Exposing the response body for incremental or whole reads
//
// There are no retries: every call is a single attempt.
//
// # Usage
//
//	req, err := http.BuildRequest(http.Params{
//	    TargetURL: "https://www.instagram.com/reel/ABC/",
//	    Method:    "GET",
//	})
//
//	client := http.NewClient(http.Options{APIBase: "https://host/api"})
//	resp, err := client.Do(ctx, req)
//	defer resp.Body.Close()
//	// resp.Meta.ContentLength, resp.Meta.ContentType, resp.Meta.Filename
//
// # Errors
//
//   - [ValidationError]: bad input, raised before any network call
//   - [ServerError]: non-2xx status, with the response body as text
//   - [NetworkError]: transport failure
//   - [StreamError]: body read failure after headers were accepted
//   - [ErrCancelled]: the caller's context was cancelled
package http
