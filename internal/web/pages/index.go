package pages

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/a-h/templ"
)

// IndexData feeds the landing page.
type IndexData struct {
	Status        importer.PoolStatus
	History       []store.ImportRecord
	Caches        int
	DefaultListID int
}

// Index shows the upload form, pool occupancy and recent imports.
func Index(d IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.printf(`<section><h2>Upload</h2>`)
		p.printf(`<form id="upload" method="post" action="/api/imports" enctype="multipart/form-data">`)
		p.printf(`<input type="file" name="file" accept=".gpx,.loc,.xml" required> `)
		p.printf(`<label>List <input type="number" name="list_id" min="1" value="%d"></label> `, d.DefaultListID)
		p.printf(`<button type="submit">Import</button></form>`)
		p.printf(`<script>document.getElementById("upload").addEventListener("submit",async e=>{e.preventDefault();`+
			`const r=await fetch(e.target.action,{method:"POST",body:new FormData(e.target)});const j=await r.json();`+
			`if(j.jobId){location.href="/imports/"+j.jobId}else{alert(j.message||"Import failed")}});</script></section>`)

		p.printf(`<section><h2>Status</h2><p>%d stored caches. %d of %d import slots in use, %d queued.</p></section>`,
			d.Caches, d.Status.Active, d.Status.MaxConcurrent, d.Status.Queued)

		p.printf(`<section><h2>Recent imports</h2>`)
		if len(d.History) == 0 {
			p.printf(`<p>No imports yet.</p></section>`)
			return p.err
		}
		p.printf(`<table><thead><tr><th>Finished</th><th>Source</th><th>List</th><th>Format</th><th>Stored</th><th>Status</th></tr></thead><tbody>`)
		for _, rec := range d.History {
			status := esc(rec.Status)
			if rec.Status == store.StatusFailed && rec.Message != "" {
				status += ": " + esc(rec.Message)
			}
			p.printf(`<tr><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%d</td><td class="%s">%s</td></tr>`,
				rec.FinishedAt.Local().Format(time.DateTime), esc(rec.Source), rec.ListID,
				esc(rec.Format), rec.Stored, esc(rec.Status), status)
		}
		p.printf(`</tbody></table></section>`)
		return p.err
	})
}
