// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/main.go
package docs

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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/auth/sign-in": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.signInRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.signInResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/api/v1/machines": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["machines"],
                "summary": "List machines",
                "parameters": [
                    {"type": "string", "description": "running, failed, finished, idle or all", "name": "status", "in": "query"},
                    {"type": "integer", "description": "Floor number", "name": "floor", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "count, total, machines", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/api/v1/machines/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["machines"],
                "summary": "Machine details",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MachineDetails"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/api/v1/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "List notifications",
                "responses": {
                    "200": {"description": "count, notifications", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/api/v1/notifications/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Dismiss notification",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/api/v1/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "List journaled machine events",
                "parameters": [
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"},
                    {"type": "string", "name": "machine", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "count, events", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/api/v1/connection": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["connection"],
                "summary": "Push connection status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ConnectionStatus"}}}
            }
        },
        "/api/v1/connection/connect": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["connection"],
                "summary": "Connect to the push feed",
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/models.ConnectionStatus"}}}
            }
        },
        "/api/v1/connection/disconnect": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["connection"],
                "summary": "Disconnect from the push feed",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ConnectionStatus"}}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["stream"],
                "summary": "Viewer snapshot stream",
                "parameters": [
                    {"type": "string", "name": "interval", "in": "query"},
                    {"type": "integer", "name": "interval_ms", "in": "query"},
                    {"type": "string", "name": "access_token", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.signInRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "handlers.signInResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "token_type": {"type": "string"}}
        },
        "handlers.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "models.StatusEvent": {
            "type": "object",
            "properties": {"machineId": {"type": "string"}, "status": {"type": "string"}, "timestamp": {"type": "string"}}
        },
        "models.MachineDetails": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "machine_type": {"type": "string"},
                "status": {"type": "string", "enum": ["running", "failed", "finished", "idle"]},
                "floor": {"type": "integer"},
                "install_date": {"type": "string"},
                "last_maintenance": {"type": "string"},
                "last_update": {"type": "string"},
                "location": {"type": "object", "properties": {"latitude": {"type": "number"}, "longitude": {"type": "number"}}},
                "last_events": {"type": "array", "items": {"$ref": "#/definitions/models.StatusEvent"}}
            }
        },
        "models.ConnectionStatus": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["disconnected", "connecting", "open", "reconnecting", "failed"]},
                "attempts": {"type": "integer"},
                "url": {"type": "string"},
                "last_signal": {"type": "string", "format": "date-time"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Fleet Monitor API",
	Description:      "Machine fleet cache kept current from the upstream push feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
