package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the API docs:
// - GET /swagger/index.html  -> Swagger UI page
// - GET /swagger/doc.json    -> OpenAPI document
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>blogsvc - Swagger</title>
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
  "info": { "title": "blogsvc", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Blog": { "type": "object", "properties": {
        "id": {"type":"string"}, "title": {"type":"string"}, "content": {"type":"string"},
        "tags": {"type":"array","items":{"type":"string"}},
        "status": {"type":"string","enum":["draft","published"]}, "published": {"type":"boolean"},
        "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"} } },
      "SaveRequest": { "type": "object", "properties": {
        "id": {"type":"string"}, "title": {"type":"string"}, "content": {"type":"string"},
        "tags": {"type":"array","items":{"type":"string"}}, "tagsText": {"type":"string"} } },
      "Result": { "type": "object", "properties": { "success": {"type":"boolean"}, "message": {"type":"string"}, "error": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/blogs": {
      "get": { "summary": "List blogs, newest first", "parameters": [{"name":"status","in":"query","schema":{"type":"string","enum":["draft","published"]}}],
        "responses": { "200": { "description": "blogs" }, "400": { "description": "bad status" } } }
    },
    "/api/blogs/{id}": {
      "get": { "summary": "Get a blog", "responses": { "200": { "description": "blog" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a blog", "responses": { "200": { "description": "deleted" }, "400": { "description": "invalid id" }, "404": { "description": "not found" }, "500": { "description": "backend error" } } }
    },
    "/api/blogs/{id}/preview": {
      "get": { "summary": "Render content as HTML", "responses": { "200": { "description": "text/html" }, "404": { "description": "not found" } } }
    },
    "/api/blogs/draft": {
      "post": { "summary": "Save a draft", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/SaveRequest"}}}},
        "responses": { "200": { "description": "saved blog" }, "400": { "description": "empty draft" }, "404": { "description": "unknown id" }, "500": { "description": "backend error" } } }
    },
    "/api/blogs/publish": {
      "post": { "summary": "Publish a blog", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/SaveRequest"}}}},
        "responses": { "200": { "description": "published blog" }, "422": { "description": "validation failed" }, "404": { "description": "unknown id" }, "500": { "description": "backend error" } } }
    },
    "/api/blogs/snapshot": {
      "post": { "summary": "Export all blogs to object storage", "responses": { "200": { "description": "key and presigned url" }, "503": { "description": "storage not configured" } } }
    },
    "/api/editor/sessions": {
      "post": { "summary": "Open an editor session with auto-save", "responses": { "201": { "description": "session id" }, "404": { "description": "unknown blog" }, "429": { "description": "session limit reached" } } }
    },
    "/api/editor/sessions/{sid}": {
      "get": { "summary": "Session status", "responses": { "200": { "description": "status" }, "404": { "description": "no session" } } },
      "patch": { "summary": "Record an edit and restart the auto-save timer", "responses": { "202": { "description": "status" }, "404": { "description": "no session" } } },
      "delete": { "summary": "Close the session, cancelling any pending save", "responses": { "204": { "description": "closed" }, "404": { "description": "no session" } } }
    },
    "/feed.xml": { "get": { "summary": "RSS feed of published blogs", "responses": { "200": { "description": "application/rss+xml" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
