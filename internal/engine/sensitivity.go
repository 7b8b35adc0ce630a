package engine

import (
	"go.uber.org/zap"

	"underwrite/internal/model"
	"underwrite/pkg/constants"
	"underwrite/pkg/valuation"
)

// SensitivityGrid is the enterprise value swept across symmetric WACC and
// terminal growth ranges centered on the base case. Rows index WACC, columns
// index growth. Nil cells mark pairs where the perpetuity is undefined.
type SensitivityGrid struct {
	WACCs   []float64    `json:"waccs"`
	Growths []float64    `json:"growths"`
	Cells   [][]*float64 `json:"cells"`
}

// Sensitivity sweeps the built projection's valuation. A non-positive step
// count uses the default grid size.
func (b *Builder) Sensitivity(params model.Params, result *Result, steps int) (*SensitivityGrid, error) {
	if steps <= 0 {
		steps = constants.DefaultSensitivitySteps
	}

	cashFlows := make([]float64, len(result.Rows))
	for i, row := range result.Rows {
		cashFlows[i] = row.UnleveredFCF
	}

	base := valuation.Input{
		CashFlows:        cashFlows,
		WACC:             params.WACC,
		TerminalGrowth:   params.TerminalGrowth,
		NetDebt:          result.Debt.TotalPrincipal() - params.ValuationCash(),
		Associates:       params.AssociatesValue,
		MinorityInterest: params.MinorityInterest,
	}

	grid := &SensitivityGrid{
		WACCs:   valuation.SymmetricRange(params.WACC, steps, constants.DefaultWACCStep),
		Growths: valuation.SymmetricRange(params.TerminalGrowth, steps, constants.DefaultGrowthStep),
	}

	cells, err := valuation.SensitivityMatrix(base, grid.WACCs, grid.Growths)
	if err != nil {
		return nil, err
	}
	grid.Cells = cells

	b.logger.Debug("sensitivity grid built",
		zap.String("op", "engine.Sensitivity"),
		zap.Int("Steps", steps),
		zap.Float64("CenterWACC", params.WACC),
		zap.Float64("CenterGrowth", params.TerminalGrowth),
	)

	return grid, nil
}
