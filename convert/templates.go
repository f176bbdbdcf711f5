package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"ept/config"
	"ept/epub"
	"ept/state"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context        string
	Title          string
	Authors        []string
	SourceLanguage string
	TargetLanguage string
	SourceFile     string
}

// buildValues collects naming material from the package metadata. The book is
// already translated by the time names are built, so Title reflects the
// target language.
func buildValues(c *epub.Container, src string, env *state.LocalEnv) Values {
	v := Values{
		SourceLanguage: languageName(env.Source),
		TargetLanguage: languageName(env.Target),
		SourceFile:     strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
	}
	for _, f := range epub.MetadataFields(c.OPF()) {
		switch f.TagName {
		case "title":
			if v.Title == "" {
				v.Title = f.Text
			}
		case "creator":
			v.Authors = append(v.Authors, f.Text)
		}
	}
	if v.Title == "" {
		v.Title = v.SourceFile
	}
	return v
}

func expandTemplate(c *epub.Container, name config.TemplateFieldName, field, src string, env *state.LocalEnv) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := buildValues(c, src, env)
	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
