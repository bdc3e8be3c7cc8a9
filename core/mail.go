package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates   tmplCache
	templatesMu sync.RWMutex
	tmplContext struct {
		AppName         string
		FrontendBaseURL string
	}

	ErrTemplateNotFound = errors.New("email template not found")
	ErrEmptyEmail       = errors.New("email rendered without content")
)

const emailTemplatesDir = "assets/templates/email"

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

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
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages renders and sends messages synchronously and returns the first failure.
		SendMessages(messages ...*EmailMessage) error
	}
)

func (m *EmailMessage) getContextData() ContextData {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	return ContextData{
		AppName:         tmplContext.AppName,
		FrontendBaseURL: tmplContext.FrontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	templatesMu.RLock()
	entry, ok := templates[m.TemplateName]
	templatesMu.RUnlock()
	if !ok || (entry.text == nil && entry.html == nil) {
		return errors.Wrap(ErrTemplateNotFound, m.TemplateName)
	}

	var buff bytes.Buffer
	if entry.text != nil && m.BodyStr == "" {
		if err := entry.text.ExecuteTemplate(&buff, "_base.txt", m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering text template")
		}
		m.TextContent = buff.String()
		buff.Reset()
	}
	if entry.html != nil {
		if err := entry.html.ExecuteTemplate(&buff, "_base.gohtml", m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering html template")
		}
		m.HTMLContent = buff.String()
	}
	if !m.HasContent() {
		return errors.Wrap(ErrEmptyEmail, m.TemplateName)
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses all email templates found under `assets/templates/email` in fsys.
// Each template extends `_base.txt` or `_base.gohtml` by defining the "content" block.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) {
	cache := make(tmplCache)

	fnames, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logger.Error("core.ParseEmailTemplates: globbing templates", err)
		return
	}

	for _, fp := range fnames {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			cache[name] = entry
		}

		basePath := path.Join(emailTemplatesDir, "_base"+ext)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, basePath, fp)
			if err != nil {
				logger.Error("core.ParseEmailTemplates: parsing "+fname, err)
				continue
			}
			if conf.Debug || conf.TestMode {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, basePath, fp)
			if err != nil {
				logger.Error("core.ParseEmailTemplates: parsing "+fname, err)
				continue
			}
			if conf.Debug || conf.TestMode {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
	}

	templatesMu.Lock()
	templates = cache
	tmplContext.AppName = conf.AppName
	tmplContext.FrontendBaseURL = conf.FrontendBaseURL
	templatesMu.Unlock()
}
