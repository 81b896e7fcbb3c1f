package labels

import (
	"html/template"
	"io"
)

var printPage = template.Must(template.New("print").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  html, body { margin: 0; padding: 0; height: 100%; background: #fff; }
  .label { display: block; width: 100%; height: 100vh; border: 0; }
  img.label { height: auto; max-height: 100vh; object-fit: contain; }
  .fallback { font-family: sans-serif; padding: 2rem; }
  @media print { .fallback { display: none; } @page { margin: 0; } }
</style>
</head>
<body>
{{- if eq .Kind "pdf"}}
<embed class="label" src="{{.Src}}" type="application/pdf">
{{- else if eq .Kind "image"}}
<img class="label" src="{{.Src}}" alt="{{.Title}}" onload="window.print()">
{{- else}}
<p class="fallback">This label cannot be previewed here. <a href="{{.Src}}" target="_blank" rel="noopener">Open the label in a new tab</a>.</p>
{{- end}}
{{- if eq .Kind "pdf"}}
<script>window.addEventListener("load", function () { setTimeout(function () { window.print(); }, 500); });</script>
{{- end}}
</body>
</html>
`))

type printView struct {
	Title string
	Kind  Kind
	Src   string
}

// RenderPrint writes a printable page around the document served at src.
// src must be a same-origin URL, normally the proxy route.
func RenderPrint(w io.Writer, kind Kind, src string) error {
	return printPage.Execute(w, printView{
		Title: "Shipping label",
		Kind:  kind,
		Src:   src,
	})
}
