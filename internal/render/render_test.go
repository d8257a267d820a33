package render

import (
	"testing"

	"github.com/leadstack/outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableRenderer_Render(t *testing.T) {
	renderer := VariableRenderer{}

	tests := []struct {
		name string
		body string
		vars map[string]string
		want string
	}{
		{
			name: "substitutes known placeholders",
			body: "Hi {{first_name}}, greetings from {{company}}!",
			vars: map[string]string{"first_name": "Ada", "company": "Acme"},
			want: "Hi Ada, greetings from Acme!",
		},
		{
			name: "unknown placeholders stay visible",
			body: "Hi {{first_name}}, your code is {{promo_code}}",
			vars: map[string]string{"first_name": "Ada"},
			want: "Hi Ada, your code is {{promo_code}}",
		},
		{
			name: "repeated placeholder",
			body: "{{first_name}} {{first_name}}",
			vars: map[string]string{"first_name": "Ada"},
			want: "Ada Ada",
		},
		{
			name: "empty value erases the placeholder",
			body: "Hi {{first_name}}",
			vars: map[string]string{"first_name": ""},
			want: "Hi ",
		},
		{
			name: "no placeholders",
			body: "plain text",
			vars: map[string]string{"first_name": "Ada"},
			want: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderer.Render(tt.body, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty body is an error", func(t *testing.T) {
		_, err := renderer.Render("", nil)
		assert.ErrorContains(t, err, "empty")
	})
}

func TestContactVars(t *testing.T) {
	vars := ContactVars(&models.Contact{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "+14155550100",
		Company:   "Analytical Engines",
	})

	assert.Equal(t, "Ada", vars["first_name"])
	assert.Equal(t, "Lovelace", vars["last_name"])
	assert.Equal(t, "ada@example.com", vars["email"])
	assert.Equal(t, "+14155550100", vars["phone"])
	assert.Equal(t, "Analytical Engines", vars["company"])
}
