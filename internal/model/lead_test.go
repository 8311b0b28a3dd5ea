package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveEmail(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		domain string
		want   string
	}{
		{"accented", "Juan Pérez", "", "juan.pérez@example.com"},
		{"single word", "Ana", "", "ana@example.com"},
		{"extra whitespace", "  Mary   Jane\tWatson ", "", "mary.jane.watson@example.com"},
		{"custom domain", "Bob Smith", "leads.test", "bob.smith@leads.test"},
		{"uppercase", "ÉMILE ZOLA", "", "émile.zola@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveEmail(tt.input, tt.domain))
		})
	}
}

func TestDeriveEmail_Deterministic(t *testing.T) {
	first := DeriveEmail("Juan Pérez", "")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, DeriveEmail("Juan Pérez", ""))
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField("Budget")
	require.NoError(t, err)
	assert.Equal(t, FieldBudget, f)

	f, err = ParseField(" description ")
	require.NoError(t, err)
	assert.Equal(t, FieldNeeds, f)

	_, err = ParseField("name = 'x'; DROP TABLE leads")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownField))
	assert.Equal(t, ErrorKindValidation, KindOf(err))
}

func TestLead_Missing(t *testing.T) {
	l := Lead{Name: "Ana", Company: "Acme", Budget: "$5"}
	assert.Equal(t, []Field{FieldEmail, FieldTimeline}, l.Missing())
}

func TestLead_Display(t *testing.T) {
	l := Lead{
		Name:     "Juan Pérez",
		Company:  "Empresa XYZ",
		Email:    "juan.pérez@example.com",
		Budget:   "$10000",
		Timeline: "next quarter",
		Needs:    "custom software",
	}
	assert.Equal(t,
		"Juan Pérez (Empresa XYZ) <juan.pérez@example.com> budget $10000, timeline next quarter: custom software",
		l.Display())
	assert.Equal(t, "Ana", Lead{Name: "Ana"}.Display())
}

func TestExtractionResult_PresenceVsEmpty(t *testing.T) {
	r := ExtractionResult{FieldName: ""}
	assert.True(t, r.Has(FieldName))
	assert.False(t, r.Has(FieldEmail))
	v, ok := r.Get(FieldName)
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.Contains(t, r.Missing(), FieldName)
	assert.False(t, r.Complete())
}

func TestExtractionResult_ToLead(t *testing.T) {
	r := ExtractionResult{FieldName: "Ana", FieldBudget: "€20"}
	l := r.ToLead()
	assert.Equal(t, "Ana", l.Name)
	assert.Equal(t, "€20", l.Budget)
	assert.Empty(t, l.Email)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKindNone, KindOf(nil))
	assert.Equal(t, ErrorKindNotFound, KindOf(eris.Wrap(ErrNotFound, "lead x")))
	assert.Equal(t, ErrorKindRemote, KindOf(eris.Wrap(ErrRemote, "hubspot")))
	assert.Equal(t, ErrorKindStorage, KindOf(eris.New("disk full")))
}
