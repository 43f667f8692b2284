package evaluator

// concurrent.go: worker pool para evaluar oportunidades en paralelo.
// La evaluación es de solo lectura, así que no hace falta ningún lock.

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/alejandrodnm/stakebot/internal/domain"
)

// evaluateConcurrent evalúa todas las oportunidades usando un worker pool.
// Los resultados vuelven en el orden de entrada para que el ranking posterior
// sea determinista.
//
// Si workers <= 0 usa runtime.NumCPU() × 2.
func evaluateConcurrent(p pass, opps []domain.Opportunity, workers int) []outcome {
	if len(opps) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	workers = min(workers, len(opps))

	type work struct {
		index int
		opp   domain.Opportunity
	}

	workCh := make(chan work, len(opps))
	resultCh := make(chan outcome, len(opps))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				o := p.evaluate(w.opp)
				o.index = w.index
				if o.err != nil {
					slog.Debug("opportunity excluded",
						"opportunity", w.opp.ID,
						"err", o.err,
					)
				}
				resultCh <- o
			}
		}()
	}

	for i, opp := range opps {
		workCh <- work{index: i, opp: opp}
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]outcome, 0, len(opps))
	for o := range resultCh {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}
