package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.Script}}"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0 auto; max-width: 1200px; padding: 1rem; }
.modern-table { border-collapse: collapse; width: 100%; }
.modern-table th, .modern-table td { border-bottom: 1px solid #ddd; padding: 0.4rem; text-align: left; }
.failed, .error-banner { color: #b00020; }
.direction-increase { color: #1b7f3b; }
.direction-decrease { color: #b35c00; }
.combo-badge, .derived { background: #eef; border-radius: 4px; font-size: 0.8em; padding: 0 0.3em; }
.filters { display: flex; flex-wrap: wrap; gap: 1rem; margin-bottom: 1rem; }
</style>
</head>
<body data-signals='{"source":"all","holiday":"","weekend":"","schoolbreak":"","product":"","discount":10,"stats":{},"products":[],"holidays":[]}'
      data-on-load="@get('/sse/refresh-all')">
<header>
<h1>{{.Title}}</h1>
<p><span data-text="$stats.rows"></span> rows, <span data-text="$stats.models"></span> models, loaded <span data-text="$stats.loaded_at"></span></p>
</header>

<section class="filters">
<label>Source
<select data-bind-source>
<option value="all">All days</option>
<option value="bau">Business as usual</option>
</select>
</label>
<label>Weekend
<select data-bind-weekend>
<option value="">Any</option>
<option value="yes">Yes</option>
<option value="no">No</option>
</select>
</label>
<label>School break
<select data-bind-schoolbreak>
<option value="">Any</option>
<option value="yes">Yes</option>
<option value="no">No</option>
</select>
</label>
<label>Holiday <input data-bind-holiday placeholder="No Holiday"></label>
<button data-on-click="@get('/sse/refresh-all')">Refresh</button>
</section>

<section>
<h2>Recommendations</h2>
<div id="recommendations-content">Loading...</div>
</section>

<section>
<h2>Optimal prices</h2>
<div id="optimal-content">Loading...</div>
</section>

<section>
<h2>Discount impact</h2>
<div class="filters">
<label>Product <input data-bind-product placeholder="burger_1070"></label>
<label>Discount % <input type="number" min="0" max="100" data-bind-discount></label>
<button data-on-click="@get('/sse/discount')">Analyze</button>
<button data-on-click="@get('/sse/products/' + $product + '/charts')">Charts</button>
</div>
<div id="discount-content"></div>
<div id="charts-content"></div>
</section>
</body>
</html>
`))

type dashboardData struct {
	Title  string
	Script string
}

// Dashboard renders the single page shell. Tables and charts are patched in
// over SSE once the page loads.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return dashboardTemplate.Execute(w, dashboardData{
			Title:  "Price Optimization Dashboard",
			Script: datastarScript,
		})
	})
}
