// Package artifact assembles downloaded chunks and manages where the result
// lives.
//
// A completed session yields one [Artifact]. The [Store] publishes it to a
// gocloud blob bucket (in memory by default) and hands back a [Handle] that
// can be opened, saved to a destination bucket and released. Superseded
// sessions release their handles so stale artifacts do not accumulate.
//
// # Usage
//
//	a := artifact.Assemble(res.Chunks, meta.ContentType, meta.Filename)
//
//	store, _ := artifact.OpenStore(ctx, "mem://", log)
//	h, _ := store.Publish(ctx, sessionID, a)
//	defer h.Release(ctx)
//
//	dst, _ := artifact.OpenBucket(ctx, "./downloads")
//	err := artifact.Save(ctx, h, dst, "")
package artifact
