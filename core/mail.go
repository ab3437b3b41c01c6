package core

import (
	"bytes"
	"context"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"
	"time"

	"github.com/pkg/errors"
)

const (
	baseTextTemplate = "_base.txt"
	baseHTMLTemplate = "_base.gohtml"
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	// Templates is the parsed set of email templates: one `<name>.txt` and/or `<name>.gohtml` per email,
	// each rendered inside the matching `_base` layout.
	Templates struct {
		appName string
		appURL  string
		entries map[string]tmplCacheEntry
	}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName string
		AppURL  string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages hands rendered messages over to the transport.
		SendMessages(ctx context.Context, messages ...*EmailMessage) error
	}
)

var templateFuncs = map[string]interface{}{
	"percentage": FormatPercentage,
	"date":       func(t time.Time) string { return t.Format("2006-01-02") },
	"datetime":   func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"inc":        func(i int) int { return i + 1 },
}

// ParseEmailTemplates parses every template found in `dir` of `fsys`.
// Files starting with "_" are layouts; strict mode makes missing keys fail rendering.
func ParseEmailTemplates(fsys fs.FS, dir, appName, appURL string, strict bool) (*Templates, error) {
	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	tmpls := &Templates{
		appName: appName,
		appURL:  appURL,
		entries: make(map[string]tmplCacheEntry),
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry := tmpls.entries[name]

		if ext == ".txt" {
			tmpl, err := texttmpl.New(baseTextTemplate).Funcs(templateFuncs).ParseFS(fsys, path.Join(dir, baseTextTemplate), fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.New(baseHTMLTemplate).Funcs(templateFuncs).ParseFS(fsys, path.Join(dir, baseHTMLTemplate), fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
		tmpls.entries[name] = entry
	}
	return tmpls, nil
}

func (t *Templates) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

func (m *EmailMessage) getContextData(t *Templates) ContextData {
	return ContextData{
		AppName: t.appName,
		AppURL:  t.appURL,
		Data:    m.TemplateData,
	}
}

func (m *EmailMessage) renderText(t *Templates, entry tmplCacheEntry) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if entry.text == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := entry.text.Execute(&buff, m.getContextData(t)); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(t *Templates, entry tmplCacheEntry) error {
	if entry.html == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := entry.html.Execute(&buff, m.getContextData(t)); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent and HTMLContent. An unknown TemplateName is an error.
func (m *EmailMessage) Render(t *Templates) error {
	var entry tmplCacheEntry
	if m.TemplateName != "" {
		var ok bool
		if entry, ok = t.entries[m.TemplateName]; !ok {
			return errors.Errorf("email template %q not found", m.TemplateName)
		}
	}
	if err := m.renderText(t, entry); err != nil {
		return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
	}
	if err := m.renderHTML(t, entry); err != nil {
		return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
