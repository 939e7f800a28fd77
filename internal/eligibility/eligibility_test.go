package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"checkin/internal/checkin/models"
	"checkin/pkg/testutil"
)

var evaluationDate = time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func participant(mod func(r *models.Registrant)) *models.Registrant {
	r := &models.Registrant{
		ID:               "R1",
		Kind:             models.RegistrantKindParticipant,
		ContractSigned:   true,
		MedicalClearance: models.MedicalClearancePending,
		BirthDate:        date(1995, time.March, 1),
	}
	if mod != nil {
		mod(r)
	}
	return r
}

func TestStaffAlwaysEligible(t *testing.T) {
	staff := &models.Registrant{
		ID:               "S1",
		Kind:             models.RegistrantKindStaff,
		ContractSigned:   false,
		MedicalClearance: models.MedicalClearanceRejected,
		BirthDate:        date(1950, time.January, 1),
	}
	result := Evaluate(staff, evaluationDate, DefaultMedicalCheckAge)
	assert.True(t, result.Eligible)
	assert.Empty(t, result.Issues)
}

func TestParticipantIssues(t *testing.T) {
	testutil.Given(t, "a participant without a signed contract", func(t *testing.T) {
		r := participant(func(r *models.Registrant) { r.ContractSigned = false })
		testutil.Then(t, "the only issue is the contract", func(t *testing.T) {
			result := Evaluate(r, evaluationDate, DefaultMedicalCheckAge)
			assert.False(t, result.Eligible)
			assert.Equal(t, []string{IssueContractNotSigned}, result.Issues)
		})
	})

	testutil.Given(t, "a participant over the threshold with pending clearance", func(t *testing.T) {
		r := participant(func(r *models.Registrant) { r.BirthDate = date(1970, time.May, 5) })
		testutil.Then(t, "clearance is required", func(t *testing.T) {
			result := Evaluate(r, evaluationDate, DefaultMedicalCheckAge)
			assert.Equal(t, []string{IssueMedicalClearancePending}, result.Issues)
		})
	})

	testutil.Given(t, "a participant with neither contract nor clearance", func(t *testing.T) {
		r := participant(func(r *models.Registrant) {
			r.ContractSigned = false
			r.BirthDate = nil
		})
		result := Evaluate(r, evaluationDate, DefaultMedicalCheckAge)
		testutil.Then(t, "both issues are listed in a stable order", func(t *testing.T) {
			assert.Equal(t, []string{IssueContractNotSigned, IssueMedicalClearancePending}, result.Issues)
		})
		testutil.And(t, "the registrant is not eligible", func(t *testing.T) {
			assert.False(t, result.Eligible)
		})
	})

	testutil.Given(t, "a rejected clearance below the threshold", func(t *testing.T) {
		r := participant(func(r *models.Registrant) {
			r.MedicalClearance = models.MedicalClearanceRejected
			r.BirthDate = date(2000, time.January, 1)
		})
		testutil.Then(t, "the participant is eligible", func(t *testing.T) {
			result := Evaluate(r, evaluationDate, DefaultMedicalCheckAge)
			assert.True(t, result.Eligible)
			assert.Empty(t, result.Issues)
		})
	})

	testutil.Given(t, "a rejected clearance at or above the threshold", func(t *testing.T) {
		r := participant(func(r *models.Registrant) {
			r.MedicalClearance = models.MedicalClearanceRejected
			r.BirthDate = date(1970, time.January, 1)
		})
		testutil.Then(t, "the clearance is reported as pending", func(t *testing.T) {
			result := Evaluate(r, evaluationDate, DefaultMedicalCheckAge)
			assert.False(t, result.Eligible)
			assert.Equal(t, []string{IssueMedicalClearancePending}, result.Issues)
		})
	})

	for _, clearance := range []models.MedicalClearance{models.MedicalClearanceCleared, models.MedicalClearanceExempt} {
		r := participant(func(r *models.Registrant) {
			r.MedicalClearance = clearance
			r.BirthDate = date(1940, time.January, 1)
		})
		assert.True(t, Evaluate(r, evaluationDate, DefaultMedicalCheckAge).Eligible, clearance)
	}
}

func TestAgeBoundaryIsInclusive(t *testing.T) {
	cases := []struct {
		name     string
		birth    *time.Time
		needsMed bool
	}{
		{"fortieth birthday today", date(1986, time.June, 15), true},
		{"fortieth birthday tomorrow", date(1986, time.June, 16), false},
		{"forty yesterday", date(1986, time.June, 14), true},
		{"thirty-nine and a half", date(1986, time.December, 31), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := participant(func(r *models.Registrant) { r.BirthDate = tc.birth })
			result := Evaluate(r, evaluationDate, DefaultMedicalCheckAge)
			assert.Equal(t, !tc.needsMed, result.Eligible)
		})
	}
}

func TestAge(t *testing.T) {
	leapling := time.Date(2000, time.February, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 24, Age(leapling, time.Date(2025, time.February, 28, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 25, Age(leapling, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, Age(leapling, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, Age(leapling, time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestValidatorIsDeterministicForFixedClock(t *testing.T) {
	v := New(WithClock(func() time.Time { return evaluationDate }), WithThreshold(40))
	r := participant(func(r *models.Registrant) { r.BirthDate = date(1986, time.June, 15) })

	first := v.Validate(r)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, v.Validate(r))
	}
	assert.False(t, first.Eligible)
}
