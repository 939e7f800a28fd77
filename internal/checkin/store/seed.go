package store

import (
	"context"
	"fmt"
	"time"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

// Provisioner writes reference data into a shared store. Every backend
// implements it alongside the registry store port.
type Provisioner interface {
	SaveToken(ctx context.Context, token *models.Token) error
	SaveRegistrant(ctx context.Context, registrant *models.Registrant) error
}

type demoRegistrant struct {
	id        string
	name      string
	fragment  string
	kind      models.RegistrantKind
	contract  bool
	clearance models.MedicalClearance
	born      string
}

var demoRegistrants = []demoRegistrant{
	{"R1", "Ana Souza", "48213", models.RegistrantKindParticipant, true, models.MedicalClearanceCleared, "1990-04-12"},
	{"R2", "José Álvarez", "48290", models.RegistrantKindParticipant, false, models.MedicalClearanceCleared, "1988-11-02"},
	{"R3", "Zoë Müller", "77120", models.RegistrantKindParticipant, true, models.MedicalClearancePending, "1979-01-30"},
	{"R4", "Łukasz Nowak", "31877", models.RegistrantKindParticipant, true, models.MedicalClearancePending, "2001-07-19"},
	{"R5", "Marta Øvergaard", "90431", models.RegistrantKindParticipant, true, models.MedicalClearanceExempt, "1970-03-08"},
	{"R6", "Ines Castro", "90432", models.RegistrantKindParticipant, true, models.MedicalClearanceCleared, "1995-09-25"},
	{"S1", "Pedro Staff", "11002", models.RegistrantKindStaff, false, "", ""},
	{"S2", "Chloé Dubois", "11003", models.RegistrantKindStaff, false, "", ""},
}

const demoTokenCount = 20

// SeedDemo provisions a small event for local terminals: tokens T-0001 to
// T-0020, all available, and a mix of eligible, blocked and staff registrants.
func SeedDemo(ctx context.Context, p Provisioner, eventID string) error {
	now := time.Now()
	for _, d := range demoRegistrants {
		r := &models.Registrant{
			ID:                 id.RegistrantID(d.id),
			Kind:               d.kind,
			DisplayName:        d.name,
			NationalIDFragment: d.fragment,
			ContractSigned:     d.contract,
			MedicalClearance:   d.clearance,
			UpdatedAt:          now,
		}
		if d.born != "" {
			born, err := time.Parse(time.DateOnly, d.born)
			if err != nil {
				return fmt.Errorf("seed registrant %s: %w", d.id, err)
			}
			r.BirthDate = &born
		}
		if err := p.SaveRegistrant(ctx, r); err != nil {
			return fmt.Errorf("seed registrant %s: %w", d.id, err)
		}
	}
	for i := 1; i <= demoTokenCount; i++ {
		token := &models.Token{
			Code:      id.TokenCode(fmt.Sprintf("T-%04d", i)),
			EventID:   eventID,
			Status:    models.TokenStatusAvailable,
			UpdatedAt: now,
		}
		if err := p.SaveToken(ctx, token); err != nil {
			return fmt.Errorf("seed token %s: %w", token.Code, err)
		}
	}
	return nil
}
