// Package shutdown coordinates graceful termination of filekv-server.
//
// Components register named hooks in start order; on SIGINT, SIGTERM,
// cancellation of the parent context, or an explicit Trigger, hooks run in
// reverse order under a shared timeout.
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("datastore", store.Close)
//	err := h.Wait(ctx)
package shutdown
