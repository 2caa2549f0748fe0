// Package prompts renders the starter prompts suggested on an empty chat.
package prompts

import (
	"bytes"
	"os/user"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
)

// MaxPrompts is the number of starter prompts offered.
const MaxPrompts = 4

// TemplateData for rendering starter prompts.
type TemplateData struct {
	Username string
	// Name of the selected model.
	Model string
}

// NewTemplateData gathers the data of the current user.
func NewTemplateData(model string) *TemplateData {
	data := &TemplateData{Model: model}
	if u, err := user.Current(); err == nil {
		data.Username = u.Username
		if data.Username == "" {
			data.Username = u.Name
		}
	}
	return data
}

// Render the starter prompt templates. Blank results are dropped and at most
// MaxPrompts are returned.
func Render(templates []string, data *TemplateData) ([]string, error) {
	prompts := make([]string, 0, MaxPrompts)
	for i, text := range templates {
		if len(prompts) == MaxPrompts {
			break
		}
		tmpl, err := template.New("starter_prompt").Funcs(sprig.FuncMap()).Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing starter prompt %d", i)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, errors.Wrapf(err, "executing starter prompt %d", i)
		}
		if prompt := strings.TrimSpace(buf.String()); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return prompts, nil
}
