package diagnostics

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sendrec/devicelab/internal/device"
	"github.com/sendrec/devicelab/internal/httputil"
	"github.com/sendrec/devicelab/internal/validate"
)

var diagnosticsPageTemplate = template.Must(template.New("diagnostics").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Device capability diagnostics</title>
    <style nonce="{{.Nonce}}">
        * { box-sizing: border-box; }
        body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #0f172a; color: #e2e8f0; }
        main { max-width: 960px; margin: 0 auto; padding: 24px 16px; }
        h1 { font-size: 22px; margin: 0 0 4px; }
        .muted { color: #94a3b8; font-size: 14px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 12px; margin: 20px 0; }
        .card { background: #1e293b; border-radius: 10px; padding: 14px; }
        .card .label { color: #94a3b8; font-size: 12px; text-transform: uppercase; letter-spacing: 0.04em; }
        .card .value { font-size: 20px; margin-top: 6px; }
        .on { color: #4ade80; }
        .off { color: #f87171; }
        .tile { position: relative; aspect-ratio: 16 / 9; background: #020617; border-radius: 10px; overflow: hidden; }
        .tile video { width: 100%; height: 100%; object-fit: cover; }
        .tile .hint { position: absolute; bottom: 8px; left: 8px; font-size: 12px; background: rgba(0,0,0,0.6); padding: 4px 8px; border-radius: 6px; }
        button { background: #3b82f6; color: #fff; border: 0; border-radius: 8px; padding: 10px 16px; font-size: 14px; cursor: pointer; }
        button:disabled { opacity: 0.5; cursor: default; }
        pre { background: #020617; border-radius: 10px; padding: 12px; font-size: 12px; overflow-x: auto; }
        a { color: #93c5fd; }
    </style>
</head>
<body>
<main>
    <h1>Device capability diagnostics</h1>
    <p class="muted">Breakpoints: mobile below {{.MobileBreakpoint}}px, tablet below {{.DesktopBreakpoint}}px, desktop otherwise. Resize or rotate to reclassify.</p>

    <div class="grid">
        <div class="card"><div class="label">Tier</div><div class="value" id="tier">-</div></div>
        <div class="card"><div class="label">Viewport</div><div class="value" id="viewport">-</div></div>
        <div class="card"><div class="label">Hover</div><div class="value" id="hover">-</div></div>
        <div class="card"><div class="label">Touch</div><div class="value" id="touch">-</div></div>
        <div class="card"><div class="label">Real mobile</div><div class="value" id="real">-</div></div>
        <div class="card"><div class="label">Simulated mobile</div><div class="value" id="simulated">-</div></div>
    </div>

    <div class="tile" id="tile">
        {{if .DemoVideoURL}}<video id="demo" src="{{.DemoVideoURL}}" muted playsinline loop preload="metadata"></video>{{end}}
        <span class="hint" id="autoplay-hint">Hover autoplay: checking</span>
    </div>

    <p><button id="export" disabled>Export report</button> <span class="muted" id="export-status"></span></p>
    <pre id="raw">waiting for first classification</pre>
</main>
<script nonce="{{.Nonce}}">
(function () {
    var session = null;
    var stream = null;
    var current = null;
    var resizeTimer = null;
    var hoverQuery = window.matchMedia ? window.matchMedia("(hover: hover)") : null;

    function probe() {
        return {
            width: window.innerWidth || 0,
            height: window.innerHeight || 0,
            hover: hoverQuery ? hoverQuery.matches : null,
            maxTouchPoints: navigator.maxTouchPoints || 0,
            touchEvents: "ontouchstart" in window,
            userAgent: (navigator.userAgent || "").slice(0, {{.MaxUserAgentLength}}),
            orientation: (screen.orientation && screen.orientation.type) || ""
        };
    }

    function flag(id, on) {
        var el = document.getElementById(id);
        el.textContent = on ? "yes" : "no";
        el.className = "value " + (on ? "on" : "off");
    }

    function render(device) {
        current = device;
        var p = probe();
        document.getElementById("tier").textContent = device.deviceType;
        document.getElementById("viewport").textContent = p.width + " x " + p.height;
        flag("hover", device.supportsHover);
        flag("touch", device.hasTouch);
        flag("real", device.isRealMobile);
        flag("simulated", device.isSimulatedMobile);
        document.getElementById("autoplay-hint").textContent = "Hover autoplay: " + (device.hoverAutoplay ? "enabled" : "disabled");
        document.getElementById("raw").textContent = JSON.stringify(device, null, 2);
    }

    function authHeaders() {
        return { "Content-Type": "application/json", "Authorization": "Bearer " + session.token };
    }

    function report(kind) {
        if (!session) return;
        fetch("/api/sessions/" + session.id + "/snapshots", {
            method: "POST",
            headers: authHeaders(),
            body: JSON.stringify({ kind: kind, probe: probe() })
        }).then(function (res) {
            return res.ok ? res.json() : null;
        }).then(function (device) {
            if (device && !stream) render(device);
        }).catch(function () {});
    }

    function onResize() {
        clearTimeout(resizeTimer);
        resizeTimer = setTimeout(function () { report("resize"); }, 150);
    }

    function onOrientation() {
        report("orientation");
    }

    function onSignals(ev) {
        var lines = ev.data.split("\n");
        for (var i = 0; i < lines.length; i++) {
            if (lines[i].indexOf("signals ") === 0) {
                var signals = JSON.parse(lines[i].slice(8));
                if (signals.device) render(signals.device);
            }
        }
    }

    var tile = document.getElementById("tile");
    var video = document.getElementById("demo");
    tile.addEventListener("mouseenter", function () {
        if (video && current && current.hoverAutoplay) video.play().catch(function () {});
    });
    tile.addEventListener("mouseleave", function () {
        if (video) video.pause();
    });

    document.getElementById("export").addEventListener("click", function () {
        var status = document.getElementById("export-status");
        status.textContent = "exporting";
        fetch("/api/sessions/" + session.id + "/report", { method: "POST", headers: authHeaders() })
            .then(function (res) { return res.json().then(function (body) { return { ok: res.ok, body: body }; }); })
            .then(function (r) {
                if (!r.ok) { status.textContent = r.body.error || "export failed"; return; }
                status.textContent = "";
                var link = document.createElement("a");
                link.href = r.body.url;
                link.textContent = "Download report";
                link.rel = "noopener";
                status.appendChild(link);
            })
            .catch(function () { status.textContent = "export failed"; });
    });

    function teardown() {
        window.removeEventListener("resize", onResize);
        window.removeEventListener("orientationchange", onOrientation);
        clearTimeout(resizeTimer);
        if (stream) { stream.close(); stream = null; }
        if (session) {
            fetch("/api/sessions/" + session.id, { method: "DELETE", headers: authHeaders(), keepalive: true }).catch(function () {});
        }
    }

    fetch("/api/sessions", { method: "POST" })
        .then(function (res) { return res.json(); })
        .then(function (s) {
            session = s;
            document.getElementById("export").disabled = false;
            stream = new EventSource("/api/sessions/" + s.id + "/events?token=" + encodeURIComponent(s.token));
            stream.addEventListener("datastar-patch-signals", onSignals);
            window.addEventListener("resize", onResize);
            window.addEventListener("orientationchange", onOrientation);
            window.addEventListener("pagehide", teardown, { once: true });
            report("mount");
        })
        .catch(function () {
            document.getElementById("raw").textContent = "could not start a diagnostic session";
        });
})();
</script>
</body>
</html>`))

type diagnosticsPageData struct {
	Nonce              string
	MobileBreakpoint   int
	DesktopBreakpoint  int
	MaxUserAgentLength int
	DemoVideoURL       string
}

func (h *Handler) DiagnosticsPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := diagnosticsPageTemplate.Execute(w, diagnosticsPageData{
		Nonce:              httputil.NonceFromContext(r.Context()),
		MobileBreakpoint:   device.MobileBreakpoint,
		DesktopBreakpoint:  device.DesktopBreakpoint,
		MaxUserAgentLength: validate.MaxUserAgentLength,
		DemoVideoURL:       h.demoVideoURL,
	}); err != nil {
		slog.Error("diagnostics: failed to render page", "error", err)
	}
}
