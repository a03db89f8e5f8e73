package pages

import (
	"context"
	"io"

	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/a-h/templ"
)

// ImportProgress shows a live view of one job, fed by its SSE stream.
func ImportProgress(jobID string, last importer.Event) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		label := last.Stage.Label()
		if last.Label != "" {
			label = last.Label
		}

		p.printf(`<section><h2>Import <code>%s</code></h2>`, esc(jobID))
		p.printf(`<p id="stage">%s</p><progress id="bar" max="100" value="%d"></progress>`, esc(label), last.Percent())
		p.printf(`<p id="outcome">%s</p></section>`, esc(outcome(last)))
		p.printf(`<script>(()=>{const src=new EventSource(%q);`, "/api/imports/"+esc(jobID)+"/progress")
		p.printf(`const stage=document.getElementById("stage"),bar=document.getElementById("bar"),out=document.getElementById("outcome");`)
		p.printf(`const show=e=>{const d=JSON.parse(e.data);if(d.label){stage.textContent=d.label}bar.value=d.percent;`+
			`if(d.type==="finished"){out.textContent="Stored "+d.stored+" caches";out.className="finished"}`+
			`if(d.type==="failed"){out.textContent=d.message+(d.code?" ("+d.code+")":"");out.className="failed"}};`)
		p.printf(`["stage","progress","finished","failed"].forEach(t=>src.addEventListener(t,show));`)
		p.printf(`src.addEventListener("complete",()=>src.close());})();</script>`)
		return p.err
	})
}

func outcome(e importer.Event) string {
	switch e.Type {
	case importer.EventFinished:
		return "Finished"
	case importer.EventFailed:
		if e.Code != "" {
			return e.Message + " (" + e.Code + ")"
		}
		return e.Message
	default:
		return ""
	}
}
