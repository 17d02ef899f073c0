// Package templates renders the HTML fragments served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

// ContainerCard is one container on the dashboard.
type ContainerCard struct {
	Info    core.ContainerInfo
	Pages   []core.PageInfo
	LastRun *core.RunRecord
}

// ContainerGroup is a titled list of cards.
type ContainerGroup struct {
	Name       string
	Containers []ContainerCard
}

// Dashboard lists containers by group with their pages and latest run.
func Dashboard(groups []ContainerGroup) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Sheet Import</title></head><body><main>`)
		p.raw(`<h1>Sheet Import</h1>`)
		if len(groups) == 0 {
			p.raw(`<p class="empty">No containers registered.</p>`)
		}
		for _, g := range groups {
			p.raw(`<section class="group"><h2>`)
			p.text(g.Name)
			p.raw(`</h2>`)
			for _, c := range g.Containers {
				renderCard(p, c)
			}
			p.raw(`</section>`)
		}
		p.raw(`</main></body></html>`)
		return p.err
	})
}

func renderCard(p *printer, c ContainerCard) {
	p.raw(`<article class="container" id="container-`)
	p.text(c.Info.Key)
	p.raw(`"><h3>`)
	p.text(c.Info.Label)
	p.raw(`</h3><ul class="pages">`)
	for _, pg := range c.Pages {
		p.raw(`<li>`)
		p.text(fmt.Sprintf("%s: %s of %s from '%s'", pg.Field, pg.Kind, pg.Record, pg.Page))
		p.raw(`</li>`)
	}
	p.raw(`</ul>`)
	if c.LastRun != nil {
		p.raw(`<p class="last-run">Last import: `)
		p.text(fmt.Sprintf("%s, %d records, %s", c.LastRun.State, c.LastRun.Records, c.LastRun.FinishedAt.Format(time.RFC3339)))
		p.raw(`</p>`)
	}
	p.raw(`</article>`)
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div class="alert alert-error" role="alert"><p class="message">`)
		p.text(message)
		p.raw(`</p>`)
		if action != "" {
			p.raw(`<p class="action">`)
			p.text(action)
			p.raw(`</p>`)
		}
		p.raw(`<p class="code">Code: `)
		p.text(code)
		p.raw(`</p></div>`)
		return p.err
	})
}

// printer keeps the first write error so components can write freely.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}
