package model

import "github.com/slotwise/slotwise/services/entitlements-service/internal/plans"

// PlanLimits is the snapshot of what a user may do right now. It is computed
// fresh on every evaluation and never persisted.
type PlanLimits struct {
	Plan                plans.Plan `json:"plan"`
	MaxAppointments     *int       `json:"max_appointments"`
	MaxBusinesses       *int       `json:"max_businesses"`
	FinancialManagement bool       `json:"financial_management"`
	AdvancedReports     bool       `json:"advanced_reports"`
	PlanExpired         bool       `json:"plan_expired"`

	AppointmentsUsed      int  `json:"appointments_used"`
	BusinessesCount       int  `json:"businesses_count"`
	AppointmentsRemaining *int `json:"appointments_remaining"`

	CanCreateAppointment     bool `json:"can_create_appointment"`
	CanCreateBusiness        bool `json:"can_create_business"`
	CanAccessFinance         bool `json:"can_access_finance"`
	CanAccessAdvancedReports bool `json:"can_access_advanced_reports"`
}

// Restricted is the snapshot handed out when an evaluation could not complete.
func Restricted() PlanLimits {
	zero := 0
	return PlanLimits{
		Plan:                  plans.Unrecognized,
		MaxAppointments:       &zero,
		MaxBusinesses:         &zero,
		AppointmentsRemaining: &zero,
	}
}

// Derive fills in the permission booleans from a plan row and the current usage.
func Derive(limits plans.Limits, expired bool, appointmentsUsed, businessesCount int) PlanLimits {
	out := PlanLimits{
		Plan:                limits.Plan,
		MaxAppointments:     limits.MaxAppointments,
		MaxBusinesses:       limits.MaxBusinesses,
		FinancialManagement: limits.FinancialManagement,
		AdvancedReports:     limits.AdvancedReports,
		PlanExpired:         expired,
		AppointmentsUsed:    appointmentsUsed,
		BusinessesCount:     businessesCount,
	}

	if limits.MaxAppointments != nil {
		remaining := *limits.MaxAppointments - appointmentsUsed
		if remaining < 0 {
			remaining = 0
		}
		out.AppointmentsRemaining = &remaining
	}

	if expired {
		return out
	}
	out.CanCreateAppointment = underLimit(limits.MaxAppointments, appointmentsUsed)
	out.CanCreateBusiness = underLimit(limits.MaxBusinesses, businessesCount)
	out.CanAccessFinance = limits.FinancialManagement
	out.CanAccessAdvancedReports = limits.AdvancedReports
	return out
}

func underLimit(max *int, used int) bool {
	if max == nil {
		return true
	}
	return used < *max
}
