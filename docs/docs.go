// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/instrument": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Get instrument status",
                "responses": {"200": {"description": "Instrument status retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/instrument/connect": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Connect instrument",
                "responses": {
                    "200": {"description": "Instrument connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid connection settings", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Transport error", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/instrument/disconnect": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Disconnect instrument",
                "responses": {"200": {"description": "Instrument disconnected", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/instrument/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Instrument health",
                "responses": {
                    "200": {"description": "Instrument health retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Instrument not connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/instrument/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Live data",
                "responses": {"200": {"description": "Live data retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/instrument/mode": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Ensure measurement mode",
                "responses": {
                    "200": {"description": "Measurement mode ensured", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Mode negotiation failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/instrument/point": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Point instrument",
                "responses": {
                    "200": {"description": "Instrument pointed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/instrument/face": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Toggle face",
                "responses": {"200": {"description": "Face toggled", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/instrument/measure": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Instrument"],
                "summary": "Measure",
                "responses": {
                    "200": {"description": "Measurement completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid configuration", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Instrument failure", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "504": {"description": "Instrument timeout", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "List measurement runs",
                "parameters": [
                    {"type": "integer", "default": 1, "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "name": "per_page", "in": "query"},
                    {"enum": ["RUNNING", "SUCCESS", "PARTIAL", "FAILED", "CANCELLED"], "type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "instrument", "in": "query"},
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Runs retrieved successfully", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/runs/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "Run statistics",
                "responses": {"200": {"description": "Run statistics retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/runs/{run_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "Get measurement run",
                "parameters": [{"type": "string", "name": "run_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run retrieved successfully", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid run ID", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/discovery/scan": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "Scan for instruments",
                "parameters": [
                    {"enum": ["all", "serial", "tcp"], "type": "string", "default": "all", "name": "type", "in": "query"},
                    {"type": "boolean", "default": false, "name": "responding_only", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Instrument scan completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Unsupported scan type", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/discovery/scanners": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "Available scanners",
                "responses": {"200": {"description": "Scanners retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        },
        "/discovery/supported": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "Get supported instruments",
                "responses": {"200": {"description": "Supported instruments retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}}
            }
        }
    },
    "definitions": {
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "success": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8085",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Tachymeter Service API",
	Description:      "GeoCOM total station control: connection, measurement mode, pointing and polar measurement runs",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
