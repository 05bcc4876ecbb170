// Package swagger registers the OpenAPI document served at /swagger/*any.
// Regenerate with: swag init -g cmd/api/main.go -o api/swagger
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/requests": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["requests"], "summary": "List purchase requests", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["requests"], "summary": "Create purchase request", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}}}
        },
        "/api/requests/{id}": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["requests"], "summary": "Get purchase request", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["requests"], "summary": "Update purchase request", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}},
            "delete": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["requests"], "summary": "Delete purchase request", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/requests/{id}/decisions": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["approvals"], "summary": "Submit approval decision", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/requests/{id}/clarification": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["approvals"], "summary": "Request clarification", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/requests/{id}/clarification/response": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["approvals"], "summary": "Respond to clarification", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/requests/{id}/payment": {
            "put": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["payments"], "summary": "Update payment status", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/requests/{id}/proforma": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"], "produces": ["application/json"], "tags": ["documents"], "summary": "Upload proforma", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}, {"type": "file", "description": "Proforma document", "name": "file", "in": "formData", "required": true}], "responses": {"202": {"description": "Accepted"}}}
        },
        "/api/requests/{id}/receipt": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"], "produces": ["application/json"], "tags": ["documents"], "summary": "Upload receipt", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}, {"type": "file", "description": "Receipt document", "name": "file", "in": "formData", "required": true}], "responses": {"202": {"description": "Accepted"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/requests/{id}/documents": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["documents"], "summary": "Get documents", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/requests/{id}/purchase-order": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["purchase-orders"], "summary": "Get purchase order", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/requests/{id}/purchase-order/export": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "tags": ["purchase-orders"], "summary": "Export purchase order", "parameters": [{"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/audit-logs": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["audit"], "summary": "Get audit logs", "parameters": [{"type": "string", "name": "entity_id", "in": "query"}, {"type": "integer", "name": "page", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Procurement Workflow API",
	Description:      "Purchase request approval, purchase orders, payment tracking and receipt validation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
