package view

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"net/url"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
)

const chartJSURL = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}}</title>
  <script src="{{.ChartJS}}"></script>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; margin: 24px; background: #fafafa; }
    .chart { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 12px; margin-bottom: 24px; display: inline-block; }
    .chart h2 { font-size: 14px; margin: 0 0 8px; color: #555; }
    .empty { color: #888; }
  </style>
</head>
<body>
{{- range .Elements}}
  <div class="chart" style="width: {{.Width}}px">
    <h2>{{.NodeID}} · {{.Hook}}</h2>
    <canvas id="chart-{{.NodeID}}" data-node-id="{{.NodeID}}" data-hook="{{.Hook}}" {{.Attr}} width="{{.Width}}" height="{{.Height}}"></canvas>
  </div>
{{- else}}
  <p class="empty">No charts.</p>
{{- end}}
<script>
(function () {
  const charts = new Map();
  const canvasFor = (id) => document.querySelector('canvas[data-node-id="' + CSS.escape(id) + '"]');

  function create(msg) {
    const canvas = canvasFor(msg.node_id);
    if (!canvas || charts.has(msg.node_id)) return;
    const spec = msg.spec;
    spec.options = Object.assign({}, spec.options, { animation: false, maintainAspectRatio: false });
    charts.set(msg.node_id, new Chart(canvas.getContext("2d"), spec));
    canvas.setAttribute("data-rendered", "true");
  }

  function update(msg) {
    const chart = charts.get(msg.node_id);
    if (!chart) return;
    chart.data.labels = msg.data.labels;
    msg.data.datasets.forEach((ds, i) => {
      if (chart.data.datasets[i]) {
        chart.data.datasets[i].data = ds.data;
        chart.data.datasets[i].label = ds.label;
      } else {
        chart.data.datasets.push(ds);
      }
    });
    chart.data.datasets.length = msg.data.datasets.length;
    chart.update();
  }

  function release(msg) {
    const chart = charts.get(msg.node_id);
    if (chart) chart.destroy();
    charts.delete(msg.node_id);
    const canvas = canvasFor(msg.node_id);
    if (canvas) canvas.removeAttribute("data-rendered");
  }

  const handlers = { create, update, release };

  function connect() {
    const proto = location.protocol === "https:" ? "wss://" : "ws://";
    const ws = new WebSocket(proto + location.host + {{.WSPath}});
    ws.onmessage = (ev) => {
      const msg = JSON.parse(ev.data);
      const fn = handlers[msg.type];
      if (fn) fn(msg);
    };
    ws.onclose = () => {
      charts.forEach((c) => c.destroy());
      charts.clear();
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
</script>
</body>
</html>
`))

type pageElement struct {
	NodeID string
	Hook   string
	Width  int
	Height int
	Attr   template.HTMLAttr
}

type pageData struct {
	Title    string
	ChartJS  string
	WSPath   string
	Elements []pageElement
}

func payloadAttr(info ElementInfo) template.HTMLAttr {
	if !chartbind.ValidAttribute(info.Attribute) {
		return ""
	}
	return template.HTMLAttr(fmt.Sprintf(`data-%s="%s"`, info.Attribute, html.EscapeString(info.Payload)))
}

// RenderPage writes the page for every element.
func (v *View) RenderPage(w io.Writer) error {
	return renderPage(w, "Growth charts", "/ws", v.List())
}

// RenderNodePage writes a page holding a single element, streaming only its frames.
func (v *View) RenderNodePage(w io.Writer, nodeID string) error {
	info, err := v.Get(nodeID)
	if err != nil {
		return err
	}
	return renderPage(w, nodeID, "/ws?nodes="+url.QueryEscape(nodeID), []ElementInfo{info})
}

func renderPage(w io.Writer, title, wsPath string, infos []ElementInfo) error {
	data := pageData{Title: title, ChartJS: chartJSURL, WSPath: wsPath}
	for _, info := range infos {
		data.Elements = append(data.Elements, pageElement{
			NodeID: info.NodeID,
			Hook:   info.Hook,
			Width:  info.Width,
			Height: info.Height,
			Attr:   payloadAttr(info),
		})
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("view: render page: %w", err)
	}
	return nil
}
