package render

import (
	"fmt"
	"strings"

	"github.com/leadstack/outreach/internal/models"
)

// Renderer is the template-rendering collaborator. Implementations take a
// template body and a variable map and return the rendered text.
type Renderer interface {
	Render(body string, vars map[string]string) (string, error)
}

// VariableRenderer substitutes {{name}} placeholders with their values.
// Unknown placeholders are left in place rather than erased, which keeps
// template typos visible in the rendered output.
type VariableRenderer struct{}

func (VariableRenderer) Render(body string, vars map[string]string) (string, error) {
	if body == "" {
		return "", fmt.Errorf("template body is empty")
	}

	result := body
	for k, v := range vars {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result, nil
}

// ContactVars builds the variable map for a contact.
func ContactVars(contact *models.Contact) map[string]string {
	return map[string]string{
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"email":      contact.Email,
		"phone":      contact.Phone,
		"company":    contact.Company,
	}
}
