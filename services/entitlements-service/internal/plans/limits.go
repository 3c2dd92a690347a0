package plans

// Limits is the fixed quota and feature row for a plan.
// A nil max means unlimited.
type Limits struct {
	Plan                Plan
	MaxAppointments     *int
	MaxBusinesses       *int
	FinancialManagement bool
	AdvancedReports     bool
}

const freeMonthlyAppointments = 30

func LimitsFor(p Plan) Limits {
	switch p {
	case Free:
		return Limits{
			Plan:                Free,
			MaxAppointments:     intPtr(freeMonthlyAppointments),
			MaxBusinesses:       intPtr(1),
			FinancialManagement: true,
		}
	case Standard:
		return Limits{
			Plan:                Standard,
			MaxBusinesses:       intPtr(1),
			FinancialManagement: true,
		}
	case Teams:
		return Limits{
			Plan:                Teams,
			FinancialManagement: true,
			AdvancedReports:     true,
		}
	default:
		// Unmatched plan names get nothing.
		return Limits{
			Plan:            Unrecognized,
			MaxAppointments: intPtr(0),
			MaxBusinesses:   intPtr(0),
		}
	}
}

func intPtr(v int) *int { return &v }
