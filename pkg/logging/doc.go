// Package logging provides the process-wide structured logger used by the
// execution layer.
//
// The package wraps [log/slog] and exposes a single global logger that is
// initialized once and then retrieved via GetLogger. Operators never build
// their own slog.Logger values; they derive children from the logger held by
// their query context so that every line carries the query id.
//
// # Initialisation
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// If GetLogger is called before Init, a default stdout logger at INFO is
// created lazily.
//
// # Context helpers
//
//	log := logging.WithQuery(id)         // adds query_id
//	log = logging.WithOperator(log, op)  // adds operator
//	log = logging.WithRun(log, name)     // adds run
package logging
