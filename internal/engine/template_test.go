package engine

import (
	"strings"
	"testing"
)

func TestRenderTemplate(t *testing.T) {
	vars := map[string]string{
		"client.firstName":    "Jane",
		"business.name":       "Acme Spa",
		"appointment.service": "Deep Tissue Massage",
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "substitutes known placeholders",
			body: "Hi {{client.firstName}}, thanks from {{business.name}}!",
			want: "Hi Jane, thanks from Acme Spa!",
		},
		{
			name: "tolerates inner whitespace",
			body: "Hi {{ client.firstName }}!",
			want: "Hi Jane!",
		},
		{
			name: "unknown placeholder renders empty",
			body: "See you soon{{client.nickname}}!",
			want: "See you soon!",
		},
		{
			name: "no placeholders passes through",
			body: "Plain message",
			want: "Plain message",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderTemplate(tt.body, vars)
			if got != tt.want {
				t.Errorf("RenderTemplate(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestRenderTemplateLeavesNoTokens(t *testing.T) {
	body := "{{client.firstName}} {{unknown.field}} {{ another.one }}"
	got := RenderTemplate(body, map[string]string{"client.firstName": "Jane"})

	if strings.Contains(got, "{{") || strings.Contains(got, "}}") {
		t.Errorf("rendered output still contains placeholder tokens: %q", got)
	}
}
