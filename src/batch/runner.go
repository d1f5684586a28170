package batch

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"orderflow/src/engine"
)

// Runner feeds an intent sequence into a matching engine, strictly in
// input order. It is the engine's single caller: the engine itself
// carries no locking, so all applications funnel through here.
type Runner struct {
	eng      *engine.MatchingEngine
	validate *validator.Validate
}

// NewRunner creates a runner bound to the given engine.
func NewRunner(eng *engine.MatchingEngine) *Runner {
	return &Runner{
		eng:      eng,
		validate: validator.New(),
	}
}

// Run applies every intent in sequence. Records that fail structural
// validation are skipped with a diagnostic, as are intents the engine
// rejects as malformed; the rest of the batch continues either way.
func (r *Runner) Run(intents []engine.Intent) engine.Stats {
	var stats engine.Stats
	for _, intent := range intents {
		if err := r.validate.Struct(intent); err != nil {
			slog.Warn("invalid intent record skipped",
				slog.String("order_id", intent.OrderID),
				slog.String("pair", intent.Pair),
				slog.Any("error", err))
			stats.Skipped++
			continue
		}
		res, err := r.eng.Apply(intent)
		if err != nil {
			slog.Warn("intent rejected",
				slog.String("order_id", intent.OrderID),
				slog.String("pair", intent.Pair),
				slog.Any("error", err))
			stats.Skipped++
			continue
		}
		stats.Applied++
		stats.Trades += len(res.Trades)
	}

	slog.Info("batch complete",
		slog.Int("applied", stats.Applied),
		slog.Int("skipped", stats.Skipped),
		slog.Int("trades", stats.Trades))
	return stats
}
