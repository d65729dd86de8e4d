package http

import "github.com/swaggo/swag"

// swaggerTemplate follows the layout swag init writes for the godoc
// annotations on the handlers.
const swaggerTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/domain.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LoginResponse"}},
                    "400": {"description": "Invalid request body", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/snapshot": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Snapshot"],
                "summary": "Latest snapshot",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "No snapshot published yet", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/snapshot/stream": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Snapshot"],
                "summary": "Snapshot stream",
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Coordinator"],
                "summary": "Coordinator status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Coordinator"],
                "summary": "Run a tick now",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "409": {"description": "A tick is already running", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "429": {"description": "Too many refresh requests", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Upstream fetch failed", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/consumption/backfill": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Coordinator"],
                "summary": "Start a consumption backfill",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/http.BackfillRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Backfill already running", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/tasks/{name}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Coordinator"],
                "summary": "Cancel a background task",
                "parameters": [{"in": "path", "name": "name", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Task is not running", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/calendar": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Calendar"],
                "summary": "Calendar events",
                "produces": ["application/json"],
                "parameters": [{"in": "query", "name": "since", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}}
            }
        }
    },
    "definitions": {
        "domain.LoginRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "domain.LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "expires_at": {"type": "string"}, "role": {"type": "string"}}
        },
        "http.BackfillRequest": {
            "type": "object",
            "properties": {"days": {"type": "integer", "example": 30}}
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "kind": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT Bearer token. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Hydro-Québec Coordinator API",
	Description:      "Control API for the peak data coordinator: snapshot, status, refresh and backfill.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
