package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLeadByEmail(t *testing.T) {
	t.Run("returns lead when found", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "FROM Lead WHERE Email = 'ana@acme.com'")
				assert.Contains(t, soql, "SELECT Id, FirstName, LastName")
				*out.(*[]Lead) = []Lead{{ID: "00Qxx", LastName: "Gómez"}}
				return nil
			},
		}

		lead, err := FindLeadByEmail(context.Background(), mock, "ana@acme.com")
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.Equal(t, "00Qxx", lead.ID)
	})

	t.Run("returns nil when not found", func(t *testing.T) {
		lead, err := FindLeadByEmail(context.Background(), &mockClient{}, "nobody@acme.com")
		require.NoError(t, err)
		assert.Nil(t, lead)
	})

	t.Run("wraps query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}
		_, err := FindLeadByEmail(context.Background(), mock, "ana@acme.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "find lead by email")
	})
}

func TestFindLeadByID(t *testing.T) {
	mock := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			assert.Contains(t, soql, "WHERE Id = '00Qxx'")
			*out.(*[]Lead) = []Lead{{ID: "00Qxx"}}
			return nil
		},
	}
	lead, err := FindLeadByID(context.Background(), mock, "00Qxx")
	require.NoError(t, err)
	require.NotNil(t, lead)
}

func TestCreateLead(t *testing.T) {
	t.Run("requires last name and company", func(t *testing.T) {
		_, err := CreateLead(context.Background(), &mockClient{}, map[string]any{"Company": "Acme"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LastName is required")

		_, err = CreateLead(context.Background(), &mockClient{}, map[string]any{"LastName": "Gómez"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Company is required")
	})

	t.Run("inserts lead", func(t *testing.T) {
		mock := &mockClient{
			insertOneFn: func(_ context.Context, obj string, rec map[string]any) (string, error) {
				assert.Equal(t, "Lead", obj)
				assert.Equal(t, "Gómez", rec["LastName"])
				return "00Qnew", nil
			},
		}
		id, err := CreateLead(context.Background(), mock, map[string]any{"LastName": "Gómez", "Company": "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "00Qnew", id)
	})
}

func TestUpdateLead(t *testing.T) {
	assert.Error(t, UpdateLead(context.Background(), &mockClient{}, "", map[string]any{"a": 1}))
	assert.Error(t, UpdateLead(context.Background(), &mockClient{}, "00Qxx", nil))

	mock := &mockClient{
		updateOneFn: func(_ context.Context, _ string, _ string, _ map[string]any) error {
			return errors.New("INVALID_FIELD")
		},
	}
	err := UpdateLead(context.Background(), mock, "00Qxx", map[string]any{"Company": "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update lead 00Qxx")
}

func TestUpsertLeadByEmail(t *testing.T) {
	fields := map[string]any{"Email": "ana@acme.com", "LastName": "Gómez", "Company": "Acme"}

	t.Run("updates existing lead", func(t *testing.T) {
		var updated string
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, out any) error {
				*out.(*[]Lead) = []Lead{{ID: "00Qold"}}
				return nil
			},
			updateOneFn: func(_ context.Context, _ string, id string, _ map[string]any) error {
				updated = id
				return nil
			},
			insertOneFn: func(context.Context, string, map[string]any) (string, error) {
				t.Fatal("insert must not be called for an existing lead")
				return "", nil
			},
		}
		id, err := UpsertLeadByEmail(context.Background(), mock, fields)
		require.NoError(t, err)
		assert.Equal(t, "00Qold", id)
		assert.Equal(t, "00Qold", updated)
	})

	t.Run("creates missing lead", func(t *testing.T) {
		id, err := UpsertLeadByEmail(context.Background(), &mockClient{}, fields)
		require.NoError(t, err)
		assert.Equal(t, "00Q000000000001", id)
	})

	t.Run("requires email", func(t *testing.T) {
		_, err := UpsertLeadByEmail(context.Background(), &mockClient{}, map[string]any{"LastName": "x"})
		require.Error(t, err)
	})
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Juan Pérez", "Juan", "Pérez"},
		{"Ana María Gómez", "Ana María", "Gómez"},
		{"Cher", "", "Cher"},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		first, last := SplitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, `a\\\'b`, escapeSoql(`a\'b`))
}
