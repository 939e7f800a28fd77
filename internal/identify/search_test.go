package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

func snapshot() []*models.Registrant {
	return []*models.Registrant{
		{ID: "R1", DisplayName: "Ana Souza", NationalIDFragment: "48213"},
		{ID: "R2", DisplayName: "José Álvarez", NationalIDFragment: "48290"},
		{ID: "R3", DisplayName: "Zoë Müller", NationalIDFragment: "77120"},
		{ID: "R4", DisplayName: "Łukasz Nowak", NationalIDFragment: "31877"},
		{ID: "R5", DisplayName: "Marta Øvergaard", NationalIDFragment: "90431"},
		{ID: "R6", DisplayName: "Joselyn Adams", NationalIDFragment: "12482"},
		{ID: "R7", DisplayName: "Ana Souza", NationalIDFragment: "55555"},
	}
}

func ids(cands []Candidate) []id.RegistrantID {
	out := make([]id.RegistrantID, len(cands))
	for i, c := range cands {
		out[i] = c.Registrant.ID
	}
	return out
}

func TestFold(t *testing.T) {
	assert.Equal(t, "jose alvarez", Fold("  JOSÉ   Álvarez "))
	assert.Equal(t, "lukasz", Fold("Łukasz"))
	assert.Equal(t, "zoe muller", Fold("Zoë Müller"))
	assert.Equal(t, "marta overgaard", Fold("Marta Øvergaard"))
}

func TestSearchIsCaseAndDiacriticInsensitive(t *testing.T) {
	assert.Equal(t, []id.RegistrantID{"R2"}, ids(Search("alvarez", snapshot(), 3, 5)))
	assert.Equal(t, []id.RegistrantID{"R4"}, ids(Search("LUKASZ", snapshot(), 3, 5)))
	assert.Equal(t, []id.RegistrantID{"R3"}, ids(Search("zoe", snapshot(), 3, 5)))
	assert.Equal(t, []id.RegistrantID{"R5"}, ids(Search("øver", snapshot(), 3, 5)))
}

func TestSearchRanking(t *testing.T) {
	t.Run("exact fragment beats prefix and substring", func(t *testing.T) {
		got := Search("48213", snapshot(), 3, 5)
		require.Len(t, got, 1)
		assert.Equal(t, MatchExact, got[0].Match)
	})

	t.Run("prefix before substring", func(t *testing.T) {
		// R1 and R2 fragments start with 482, R6 only contains it.
		got := Search("482", snapshot(), 3, 5)
		assert.Equal(t, []id.RegistrantID{"R1", "R2", "R6"}, ids(got))
		assert.Equal(t, MatchSubstring, got[2].Match)
	})

	t.Run("ties broken by name then id", func(t *testing.T) {
		got := Search("souza", snapshot(), 3, 5)
		assert.Equal(t, []id.RegistrantID{"R1", "R7"}, ids(got))
	})

	t.Run("name word prefix", func(t *testing.T) {
		got := Search("jos", snapshot(), 3, 5)
		assert.Equal(t, []id.RegistrantID{"R2", "R6"}, ids(got))
	})
}

func TestSearchBounds(t *testing.T) {
	assert.Empty(t, Search("an", snapshot(), 3, 5), "below the minimum length")
	assert.Empty(t, Search("   ", snapshot(), 3, 5))
	assert.Empty(t, Search("nobody", snapshot(), 3, 5))

	many := make([]*models.Registrant, 0, 12)
	for i := 0; i < 12; i++ {
		many = append(many, &models.Registrant{ID: id.RegistrantID(string(rune('a' + i))), DisplayName: "Sam Doe"})
	}
	assert.Len(t, Search("sam", many, 3, 5), 5)
}
