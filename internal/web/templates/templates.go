// Package templates holds the HTML views served by the web package.
//
// Components are templ.Components so handlers render them the same way
// whether they return a full page or an HTMX fragment.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/docmerge/internal/core"
)

// PageData feeds the upload page.
type PageData struct {
	Presets     []core.Preset
	MaxFileSize int64
}

// IndexPage renders the upload form.
func IndexPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if err := uploadForm(data).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageTail)
		return err
	})
}

func uploadForm(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<form id="generate-form" enctype="multipart/form-data" data-max-size="%d">`, data.MaxFileSize)
		io.WriteString(w, `<label>Data file (.xlsx or .csv)<input type="file" name="data" accept=".xlsx,.csv" required></label>`)
		io.WriteString(w, `<label>Template (.docx)<input type="file" name="template" accept=".docx,.docm" required></label>`)

		io.WriteString(w, `<fieldset><legend>Placeholder format</legend><select name="preset" id="preset">`)
		for _, p := range data.Presets {
			fmt.Fprintf(w, `<option value="%s" data-start="%s" data-end="%s">%s</option>`,
				templ.EscapeString(p.Name),
				templ.EscapeString(p.Start),
				templ.EscapeString(p.End),
				templ.EscapeString(p.Label),
			)
		}
		io.WriteString(w, `<option value="">Custom</option></select>`)
		io.WriteString(w, `<label>Prefix<input type="text" name="prefix" id="prefix" placeholder="{{"></label>`)
		io.WriteString(w, `<label>Suffix<input type="text" name="suffix" id="suffix" placeholder="}}"></label>`)
		io.WriteString(w, `</fieldset>`)

		io.WriteString(w, `<label><input type="checkbox" name="unwrap_single" value="true"> Return a single document without a ZIP when there is one row</label>`)
		io.WriteString(w, `<button type="submit">Generate documents</button>`)
		_, err := io.WriteString(w, `</form><div id="result" role="status"></div>`)
		return err
	})
}

// ErrorAlert renders an error message with its suggested action.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><p class="alert-message">%s</p>`,
			templ.EscapeString(message),
		)
		if err != nil {
			return err
		}
		if action != "" {
			fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		if code != "" {
			fmt.Fprintf(w, `<p class="alert-code">Error code: %s</p>`, templ.EscapeString(code))
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Document Merge</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 2rem auto; padding: 0 1rem; }
label { display: block; margin: .75rem 0; }
fieldset { margin: 1rem 0; }
.alert-error { border: 1px solid #c00; background: #fee; padding: .5rem 1rem; }
.alert-code { color: #666; font-size: .85rem; }
</style>
</head>
<body>
<h1>Document Merge</h1>
<p>Upload a spreadsheet and a Word template. Each row becomes one document, delivered as a ZIP archive.</p>
`

const pageTail = `
<script>
(function () {
  var form = document.getElementById("generate-form");
  var result = document.getElementById("result");
  var preset = document.getElementById("preset");
  var prefix = document.getElementById("prefix");
  var suffix = document.getElementById("suffix");

  function syncPreset() {
    var opt = preset.options[preset.selectedIndex];
    var custom = opt.value === "";
    prefix.disabled = !custom;
    suffix.disabled = !custom;
    if (!custom) {
      prefix.value = opt.dataset.start;
      suffix.value = opt.dataset.end;
    }
  }
  preset.addEventListener("change", syncPreset);
  syncPreset();

  form.addEventListener("submit", function (ev) {
    ev.preventDefault();
    result.textContent = "Generating...";
    fetch("/api/generate", { method: "POST", body: new FormData(form), headers: { "HX-Request": "true" } })
      .then(function (resp) {
        if (!resp.ok) {
          return resp.text().then(function (html) { result.innerHTML = html; });
        }
        var name = "generated_documents.zip";
        var cd = resp.headers.get("Content-Disposition") || "";
        var m = cd.match(/filename="([^"]+)"/);
        if (m) { name = m[1]; }
        var total = resp.headers.get("X-Rows-Total");
        var failed = resp.headers.get("X-Rows-Failed");
        return resp.blob().then(function (blob) {
          var a = document.createElement("a");
          a.href = URL.createObjectURL(blob);
          a.download = name;
          a.click();
          URL.revokeObjectURL(a.href);
          result.textContent = "Generated " + (total - failed) + " of " + total + " documents.";
        });
      })
      .catch(function (err) { result.textContent = "Request failed: " + err; });
  });
})();
</script>
</body>
</html>
`
