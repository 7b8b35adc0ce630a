package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"underwrite/internal/model"
)

// BaseScenarioName labels the implicit scenario run when a model defines
// none of its own.
const BaseScenarioName = "base case"

// RunScenarios builds every active scenario concurrently. Scenarios are
// independent parameter sets, so they share nothing but the immutable base
// model; each goroutine writes only its own result slot. Results come back
// in model order regardless of completion order.
func (b *Builder) RunScenarios(m *model.Model) ([]*Result, error) {
	for _, scenario := range m.Scenarios {
		if !scenario.Active {
			b.logger.Debug(fmt.Sprintf("skipping inactive scenario %s", scenario.Name),
				zap.String("op", "engine.RunScenarios"),
			)
		}
	}

	scenarios := m.ActiveScenarios()
	if len(scenarios) == 0 {
		scenarios = []model.Scenario{{Name: BaseScenarioName, Active: true}}
	}

	results := make([]*Result, len(scenarios))
	errs := make([]error, len(scenarios))

	var wg sync.WaitGroup
	for i, scenario := range scenarios {
		wg.Add(1)
		go func(slot int, scenario model.Scenario) {
			defer wg.Done()
			params := scenario.Apply(m.Params)
			result, err := b.Build(params)
			if err != nil {
				errs[slot] = fmt.Errorf("scenario %s: %w", scenario.Name, err)
				return
			}
			result.ScenarioName = scenario.Name
			results[slot] = result
		}(i, scenario)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	b.logger.Debug("all scenarios complete",
		zap.String("op", "engine.RunScenarios"),
		zap.Int("Scenarios", len(results)),
	)

	return results, nil
}
