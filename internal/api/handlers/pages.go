package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
)

// PageHandler serves the landing, success and cancel pages.
type PageHandler struct {
	publishableKey string
	packages       []string
	landing        *template.Template
	success        *template.Template
	cancel         *template.Template
	logger         *slog.Logger
}

// NewPageHandler creates a new page handler.
func NewPageHandler(publishableKey string, packages []string, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		publishableKey: publishableKey,
		packages:       packages,
		landing:        template.Must(template.New("landing").Parse(landingTemplate)),
		success:        template.Must(template.New("success").Parse(successTemplate)),
		cancel:         template.Must(template.New("cancel").Parse(cancelTemplate)),
		logger:         logger,
	}
}

type landingData struct {
	PublishableKey string
	Packages       []string
}

// Index handles GET /.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.landing, landingData{PublishableKey: h.publishableKey, Packages: h.packages})
}

// Success handles GET /success.
func (h *PageHandler) Success(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.success, struct{ SessionID string }{r.URL.Query().Get("session_id")})
}

// Cancel handles GET /cancel.
func (h *PageHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.cancel, nil)
}

func (h *PageHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render page", "page", tmpl.Name(), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

const pageStyle = `
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; background: #f0f0f0; color: #333; }
        a { color: #007bff; text-decoration: none; }
`

const landingTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>BuildSwift - Your Website, Built Today</title>
    <script src="https://js.stripe.com/v3/"></script>
    <style>` + pageStyle + `
        form { max-width: 420px; margin: 0 auto; text-align: left; }
        label { display: block; margin-top: 16px; font-size: 14px; }
        input, select { width: 100%; padding: 10px; margin-top: 4px; box-sizing: border-box; }
        button { margin-top: 24px; width: 100%; padding: 14px; background: #FF6B00; color: #fff; border: none; font-size: 16px; cursor: pointer; }
        .error { color: #dc3545; margin-top: 12px; }
    </style>
</head>
<body>
    <h1>BuildSwift</h1>
    <p>A complete website for your business, generated and deployed the moment you pay.</p>
    <form id="checkout">
        <label>Business name <input name="business_name" required></label>
        <label>Industry <input name="industry" placeholder="restaurant, plumber, salon"></label>
        <label>Email <input name="email" type="email"></label>
        <label>Package
            <select name="package">
            {{- range .Packages}}
                <option value="{{.}}">{{.}}</option>
            {{- end}}
            </select>
        </label>
        <button type="submit">Get my website</button>
        <div class="error" id="error"></div>
    </form>
    <script>
        const stripe = Stripe({{.PublishableKey}});
        document.getElementById("checkout").addEventListener("submit", async (e) => {
            e.preventDefault();
            const body = Object.fromEntries(new FormData(e.target).entries());
            const res = await fetch("/api/checkout", {
                method: "POST",
                headers: {"Content-Type": "application/json"},
                body: JSON.stringify(body),
            });
            const data = await res.json();
            if (!res.ok) {
                document.getElementById("error").textContent = data.message;
                return;
            }
            stripe.redirectToCheckout({sessionId: data.sessionId});
        });
    </script>
</body>
</html>
`

const successTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Payment Successful - BuildSwift</title>
    <style>` + pageStyle + `
        h1 { color: #28a745; }
        p { font-size: 18px; }
    </style>
</head>
<body>
    <h1>Payment Received!</h1>
    <p>Your website is being built right now. We'll send you an email when it's ready.</p>
    {{- if .SessionID}}
    <p><small>Reference: {{.SessionID}}</small></p>
    {{- end}}
    <p><a href="/">&larr; Back to BuildSwift</a></p>
</body>
</html>
`

const cancelTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Payment Cancelled - BuildSwift</title>
    <style>` + pageStyle + `
        h1 { color: #dc3545; }
    </style>
</head>
<body>
    <h1>Payment Cancelled</h1>
    <p><a href="/">&larr; Try Again</a></p>
</body>
</html>
`
