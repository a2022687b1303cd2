// Package session runs one download at a time and tracks its lifecycle.
//
// A session moves through a small state machine:
//
//	idle -> starting -> downloading -> done
//	starting|downloading -> aborting -> aborted
//	starting|downloading -> error
//
// [Transition] is the pure state machine. [Controller] drives it: it issues
// the request, reads the body, assembles and publishes the artifact and
// notifies observers of every state change. Each session owns a [Token];
// [Controller.Cancel] signals it and starting a new session signals the
// previous one and waits for it to reach aborted.
//
// # Usage
//
//	ctrl := session.New(client, session.Options{
//	    Store:     store,
//	    Observers: []session.Observer{reporter},
//	})
//	defer ctrl.Close(ctx)
//
//	go func() {
//	    <-sigCh
//	    ctrl.Cancel()
//	}()
//
//	res, err := ctrl.Start(ctx, req)
//	if errors.Is(err, http.ErrCancelled) {
//	    // aborted, no artifact
//	}
package session
