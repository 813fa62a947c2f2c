package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the indexing service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docindex Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docindex", "version": "v0.1.0" },
  "paths": {
    "/upload": {
      "post": {
        "summary": "Upload documents and index their text",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"files":{"type":"array","items":{"type":"string","format":"binary"}}}}}}},
        "responses": { "200": { "description": "all files indexed" }, "207": { "description": "some files failed" }, "400": { "description": "no files" }, "413": { "description": "upload too large" } }
      }
    },
    "/search": {
      "get": {
        "summary": "Search indexed documents",
        "parameters": [ { "name": "keyword", "in": "query", "schema": {"type":"string"} } ],
        "responses": { "200": { "description": "matching documents with a 500 character preview" } }
      }
    },
    "/fix-index": {
      "post": { "summary": "Remove duplicate documents, keeping the oldest per file name", "responses": { "200": { "description": "removed and skipped counts" }, "409": { "description": "maintenance in progress" } } }
    },
    "/delete-by-keyword": {
      "delete": {
        "summary": "Delete documents whose content contains the keyword",
        "parameters": [ { "name": "keyword", "in": "query", "required": true, "schema": {"type":"string"} } ],
        "responses": { "200": { "description": "deleted count" }, "400": { "description": "keyword missing" }, "409": { "description": "maintenance in progress" } }
      }
    },
    "/delete-old-documents": {
      "delete": {
        "summary": "Delete documents indexed more than N days ago",
        "parameters": [ { "name": "day", "in": "query", "required": true, "schema": {"type":"integer","minimum":1} }, { "name": "batch_size", "in": "query", "schema": {"type":"integer","minimum":1} } ],
        "responses": { "200": { "description": "deleted count" }, "400": { "description": "invalid day" }, "409": { "description": "maintenance in progress" }, "500": { "description": "cleanup failed; partial count reported" } }
      }
    },
    "/delete-old-documents-years": {
      "delete": {
        "summary": "Delete documents indexed more than N years ago",
        "parameters": [ { "name": "years", "in": "query", "required": true, "schema": {"type":"integer","minimum":1} }, { "name": "batch_size", "in": "query", "schema": {"type":"integer","minimum":1} } ],
        "responses": { "200": { "description": "deleted count" }, "400": { "description": "invalid years" }, "409": { "description": "maintenance in progress" }, "500": { "description": "cleanup failed; partial count reported" } }
      }
    },
    "/reset-index": {
      "delete": { "summary": "Drop and recreate the search index", "responses": { "200": { "description": "index reset" }, "409": { "description": "maintenance in progress" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
