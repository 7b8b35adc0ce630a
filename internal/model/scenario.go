package model

// Apply returns a copy of the base parameters with the scenario's overrides
// applied. The tranche list is cloned before a rate shock so the base model
// is never altered by a stress run.
func (s Scenario) Apply(base Params) Params {
	p := base

	if s.Growth != nil {
		p.Growth = *s.Growth
	}
	if s.BaseRevenue != nil {
		p.BaseRevenue = *s.BaseRevenue
	}
	if s.COGSPct != nil {
		p.COGSPct = *s.COGSPct
	}
	if s.OpexPct != nil {
		p.OpexPct = *s.OpexPct
	}
	if s.CapexPct != nil {
		p.CapexPct = *s.CapexPct
	}
	if s.TaxRate != nil {
		p.TaxRate = *s.TaxRate
	}
	if s.WACC != nil {
		p.WACC = *s.WACC
	}
	if s.TerminalGrowth != nil {
		p.TerminalGrowth = *s.TerminalGrowth
	}
	if s.RateShock != nil {
		p.InterestRate += *s.RateShock
		if len(p.Tranches) > 0 {
			shocked := make([]TrancheConfig, len(p.Tranches))
			copy(shocked, p.Tranches)
			for i := range shocked {
				shocked[i].Rate += *s.RateShock
			}
			p.Tranches = shocked
		}
	}

	return p
}
