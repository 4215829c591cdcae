// Package docs registers the swagger spec served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/drops": {
            "get": {"tags": ["drops"], "summary": "List drops"},
            "post": {"tags": ["drops"], "summary": "Create a drop"}
        },
        "/drops/{dropID}/confirm": {
            "post": {"tags": ["drops"], "summary": "Confirm drop receipt"}
        },
        "/drops/collect-qr": {
            "post": {"tags": ["drops"], "summary": "Generate collect QR"}
        },
        "/wallet/balance": {
            "get": {"tags": ["wallet"], "summary": "Get wallet balance"}
        },
        "/wallet/can-withdraw": {
            "get": {"tags": ["wallet"], "summary": "Check withdrawal eligibility"}
        },
        "/wallet/withdrawals": {
            "get": {"tags": ["wallet"], "summary": "Get withdrawal history"},
            "post": {"tags": ["wallet"], "summary": "Create a withdrawal"}
        },
        "/internal/match": {
            "post": {"tags": ["matching"], "summary": "Trigger a matching cycle"}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Giftdrop Backend API",
	Description:      "Drop matching and payout settlement API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
