// Package server provides the read-only debug HTTP API for the extension
// handler orchestrator.
//
// Unlike the teacher's internal/server, which served a bundled UI over TLS
// in production, this server exists purely for operators to inspect the
// orchestrator's last reconciliation pass and per-handler state without
// parsing waagent_status.json by hand: it runs HTTP-only, has no static
// assets, and no SPA fallback. The Gin engine, the ginzap logging and
// recovery middleware, and the registerHandlers(router) callback wiring
// into an /api/v1 group are unchanged from the teacher's shape.
//
// Creation:
//
//	srv := server.NewServer(cfg, func(v1 *gin.RouterGroup) {
//	    handlers.Register(v1, h)
//	})
//
// Starting (blocks until ctx is cancelled or the listener errors):
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Stopping performs a graceful shutdown, waiting for in-flight requests:
//
//	srv.Stop(ctx)
package server
