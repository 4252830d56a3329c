package model

import (
	"fmt"
)

// ProtocolTemplate is an immutable clinical follow-up plan. Templates are
// authored elsewhere and loaded as data; the engine only reads them.
type ProtocolTemplate struct {
	ProtocolName            string              `json:"protocol_name" validate:"required"`
	ConditionType           string              `json:"condition_type" validate:"required"`
	CancerType              string              `json:"cancer_type" validate:"required"`
	ApplicableStages        []string            `json:"applicable_stages"`
	TreatmentIntentRequired string              `json:"treatment_intent_required"`
	DurationYears           int                 `json:"duration_years" validate:"required,min=1"`
	Rules                   []InvestigationRule `json:"rules" validate:"required,min=1,dive"`
}

// InvestigationRule is a tagged union: exactly one of Fixed or Recurring
// is set. The two shapes carry disjoint fields and are never mixed in a
// single rule, though a template may hold both shapes for the same
// surveillance type.
type InvestigationRule struct {
	SurveillanceType string           `json:"surveillance_type" validate:"required"`
	Fixed            *FixedOffsetRule `json:"fixed,omitempty"`
	Recurring        *RecurringRule   `json:"recurring,omitempty"`
}

// FixedOffsetRule produces exactly one schedule item per offset.
type FixedOffsetRule struct {
	Offsets []FixedOffset `json:"offsets" validate:"required,min=1,dive"`
}

type FixedOffset struct {
	MonthsPostTreatment int    `json:"months_post_treatment" validate:"min=0"`
	Description         string `json:"description"`
}

// RecurringRule produces repeated items spaced FrequencyMonths apart,
// starting at StartAfterMonths and continuing while elapsed time stays
// within StartAfterMonths+DurationMonths.
type RecurringRule struct {
	FrequencyMonths  int    `json:"frequency_months" validate:"required,min=1"`
	DurationMonths   int    `json:"duration_months" validate:"required,min=1"`
	StartAfterMonths int    `json:"start_after_months" validate:"min=0"`
	Description      string `json:"description"`
}

// Validate enforces the one-shape-per-rule invariant on top of the tag
// based field validation.
func (r *InvestigationRule) Validate() error {
	if r.Fixed == nil && r.Recurring == nil {
		return fmt.Errorf("rule for %q has no shape: one of fixed or recurring is required", r.SurveillanceType)
	}
	if r.Fixed != nil && r.Recurring != nil {
		return fmt.Errorf("rule for %q has both shapes: fixed and recurring are mutually exclusive", r.SurveillanceType)
	}
	return nil
}

func (t *ProtocolTemplate) Validate() error {
	if t.ProtocolName == "" {
		return fmt.Errorf("protocol_name is required")
	}
	for i := range t.Rules {
		if err := t.Rules[i].Validate(); err != nil {
			return fmt.Errorf("protocol %s: %w", t.ProtocolName, err)
		}
	}
	return nil
}

// Unrestricted reports whether the template carries no stage/intent
// restriction and may serve as a fallback for its cancer type.
func (t *ProtocolTemplate) Unrestricted() bool {
	return len(t.ApplicableStages) == 0 && t.TreatmentIntentRequired == ""
}

// MatchesStageIntent reports whether the template explicitly covers the
// given stage and treatment intent.
func (t *ProtocolTemplate) MatchesStageIntent(stage, intent string) bool {
	if t.TreatmentIntentRequired == "" || t.TreatmentIntentRequired != intent {
		return false
	}
	for _, s := range t.ApplicableStages {
		if s == stage {
			return true
		}
	}
	return false
}
