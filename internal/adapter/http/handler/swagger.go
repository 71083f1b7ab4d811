package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Wallet Ledger - API Docs</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="docs"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/swagger/spec', dom_id: '#docs', deepLinking: true });
  </script>
</body>
</html>`

// DocsHandler serves the OpenAPI document and a browser viewer for it.
type DocsHandler struct {
	spec []byte
}

func NewDocsHandler(spec []byte) *DocsHandler {
	return &DocsHandler{spec: spec}
}

// Spec serves the raw OpenAPI YAML, or 404 when none was loaded.
func (h *DocsHandler) Spec(c *gin.Context) {
	if len(h.spec) == 0 {
		c.String(http.StatusNotFound, "api docs unavailable")
		return
	}
	c.Data(http.StatusOK, "application/yaml", h.spec)
}

// Page serves the viewer; it 404s with Spec so a docs-less build exposes nothing.
func (h *DocsHandler) Page(c *gin.Context) {
	if len(h.spec) == 0 {
		c.String(http.StatusNotFound, "api docs unavailable")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsPage))
}
