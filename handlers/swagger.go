package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the API documentation endpoints.
// - GET /swagger/index.html  -> Swagger UI loading the document below
// - GET /swagger/doc.json    -> OpenAPI 3 document
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
    <title>lis-api · Swagger</title>
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

// Paths are listed without request schemas except where the body is not obvious
// from the models.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "lis-api", "version": "v1" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/v1/auth/login": {
      "post": {
        "summary": "Password login",
        "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["username","password"],"properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "accessToken, refreshToken, expiresIn, user" }, "401": { "description": "invalid credentials" } }
      }
    },
    "/api/v1/auth/refresh": {
      "post": { "summary": "Rotate refresh token", "security": [], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid refresh token" } } }
    },
    "/api/v1/auth/logout": {
      "post": { "summary": "End session and revoke the bearer token", "security": [], "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/auth/me": { "get": { "summary": "Current user", "responses": { "200": { "description": "user" } } } },
    "/api/v1/auth/password": { "post": { "summary": "Change own password", "responses": { "204": { "description": "changed" }, "403": { "description": "current password wrong" } } } },
    "/api/v1/users": {
      "get": { "summary": "List users (admin)", "responses": { "200": { "description": "users" } } },
      "post": { "summary": "Create user (admin)", "responses": { "201": { "description": "created" }, "409": { "description": "username taken" } } }
    },
    "/api/v1/users/{id}": {
      "get": { "summary": "Get user", "responses": { "200": { "description": "user" } } },
      "patch": { "summary": "Update user", "responses": { "200": { "description": "user" } } },
      "delete": { "summary": "Delete user", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/v1/users/{id}/deactivate": { "post": { "summary": "Deactivate user and end their sessions", "responses": { "200": { "description": "user" } } } },
    "/api/v1/patients": {
      "get": { "summary": "Search patients (q, mrn, limit, skip)", "responses": { "200": { "description": "patients" } } },
      "post": { "summary": "Register patient; MRN is assigned", "responses": { "201": { "description": "created" } } }
    },
    "/api/v1/patients/{id}": {
      "get": { "summary": "Get patient", "responses": { "200": { "description": "patient" } } },
      "patch": { "summary": "Update patient", "responses": { "200": { "description": "patient" } } },
      "delete": { "summary": "Delete patient without orders", "responses": { "204": { "description": "deleted" }, "409": { "description": "patient has orders" } } }
    },
    "/api/v1/patients/{id}/orders": { "get": { "summary": "Orders of a patient", "responses": { "200": { "description": "orders" } } } },
    "/api/v1/test-catalog": {
      "get": { "summary": "Test catalog (active, department)", "responses": { "200": { "description": "tests" } } },
      "post": { "summary": "Create catalog test", "responses": { "201": { "description": "created" } } }
    },
    "/api/v1/test-catalog/{id}": {
      "get": { "summary": "Get catalog test", "responses": { "200": { "description": "test" } } },
      "patch": { "summary": "Update catalog test", "responses": { "200": { "description": "test" } } },
      "delete": { "summary": "Delete catalog test", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/v1/instruments": {
      "get": { "summary": "Instruments (status)", "responses": { "200": { "description": "instruments" } } },
      "post": { "summary": "Register instrument", "responses": { "201": { "description": "created" } } }
    },
    "/api/v1/instruments/{id}/calibrate": { "post": { "summary": "Record calibration and bring online", "responses": { "200": { "description": "instrument" } } } },
    "/api/v1/appointments": {
      "get": { "summary": "Appointments (date, from, to, status, patientId, view=full)", "responses": { "200": { "description": "appointments or joined views" } } },
      "post": { "summary": "Book appointment", "responses": { "201": { "description": "created" }, "409": { "description": "slot overlaps an existing booking" } } }
    },
    "/api/v1/appointments/{id}": {
      "get": { "summary": "Get appointment", "responses": { "200": { "description": "appointment" } } },
      "patch": { "summary": "Reschedule or edit", "responses": { "200": { "description": "appointment" }, "409": { "description": "slot conflict" } } },
      "delete": { "summary": "Delete appointment", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/v1/appointments/{id}/view": { "get": { "summary": "Appointment joined with patient, order and tests", "responses": { "200": { "description": "view" } } } },
    "/api/v1/appointments/{id}/check-in": { "post": { "summary": "Check in", "responses": { "200": { "description": "appointment" } } } },
    "/api/v1/appointments/{id}/complete": { "post": { "summary": "Complete", "responses": { "200": { "description": "appointment" } } } },
    "/api/v1/appointments/{id}/cancel": { "post": { "summary": "Cancel", "responses": { "200": { "description": "appointment" } } } },
    "/api/v1/appointments/{id}/no-show": { "post": { "summary": "Mark no-show", "responses": { "200": { "description": "appointment" } } } },
    "/api/v1/orders": {
      "get": { "summary": "Orders (patientId, status, priority, from, to, limit, skip)", "responses": { "200": { "description": "orders" } } },
      "post": { "summary": "Place order, optionally booking its appointment", "responses": { "201": { "description": "created" }, "409": { "description": "slot conflict" } } }
    },
    "/api/v1/orders/{id}": {
      "get": { "summary": "Get order", "responses": { "200": { "description": "order" } } },
      "patch": { "summary": "Edit tests, priority or appointment", "responses": { "200": { "description": "order" }, "409": { "description": "conflict" } } },
      "delete": { "summary": "Delete pending or cancelled order", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/v1/orders/{id}/cancel": { "post": { "summary": "Cancel order", "responses": { "200": { "description": "order" } } } },
    "/api/v1/orders/{id}/samples/{tubeType}/collect": { "post": { "summary": "Record collection", "responses": { "200": { "description": "order" } } } },
    "/api/v1/orders/{id}/samples/{tubeType}/accession": { "post": { "summary": "Receive sample, assign accession number", "responses": { "200": { "description": "order" } } } },
    "/api/v1/orders/{id}/samples/{tubeType}/reject": { "post": { "summary": "Reject sample", "responses": { "200": { "description": "order" } } } },
    "/api/v1/orders/{id}/tests/{code}/result": { "put": { "summary": "Enter result", "responses": { "200": { "description": "order" } } } },
    "/api/v1/orders/{id}/tests/{code}/verify": { "post": { "summary": "Verify result", "responses": { "200": { "description": "order" } } } },
    "/api/v1/accessions/{accession}": { "get": { "summary": "Order by accession number", "responses": { "200": { "description": "order" } } } },
    "/api/v1/inventory": {
      "get": { "summary": "Inventory (lowStock, category)", "responses": { "200": { "description": "items" } } },
      "post": { "summary": "Create item", "responses": { "201": { "description": "created" }, "409": { "description": "sku taken" } } }
    },
    "/api/v1/inventory/expiring": { "get": { "summary": "Items expiring within days", "responses": { "200": { "description": "items" } } } },
    "/api/v1/inventory/{id}/adjust": { "post": { "summary": "Adjust stock by delta", "responses": { "200": { "description": "item" }, "409": { "description": "insufficient stock" } } } },
    "/api/v1/audit-logs": { "get": { "summary": "Audit trail (entityType, entityId, userId, action, from, to, limit)", "responses": { "200": { "description": "entries" } } } },
    "/api/v1/reports/dashboard": { "get": { "summary": "Operational dashboard", "responses": { "200": { "description": "dashboard" } } } },
    "/api/v1/reports/tat-export": { "post": { "summary": "Export turnaround CSV to object storage", "responses": { "201": { "description": "object key and download URL" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
