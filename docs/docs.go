// Package docs registers the OpenAPI document served under /swagger.
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
        "/api/analyze": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Score a GitHub profile and build the recruiter report",
                "parameters": [
                    {
                        "description": "GitHub handle and optional resume text",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/AnalyzeRequest"}
                    },
                    {
                        "type": "string",
                        "description": "Bearer token used instead of the server's GitHub token",
                        "name": "Authorization",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {"description": "Assembled report"},
                    "400": {"description": "Invalid username or body"},
                    "401": {"description": "GitHub authentication failed"},
                    "404": {"description": "GitHub user not found"},
                    "429": {"description": "Rate limit exceeded"},
                    "500": {"description": "Internal server error during analysis"}
                }
            }
        },
        "/api/score": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Score a raw signal snapshot offline",
                "responses": {
                    "200": {"description": "Score bundle"},
                    "400": {"description": "Malformed snapshot"}
                }
            }
        },
        "/api/history/{username}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Stored score bundles for a handle, newest first",
                "parameters": [
                    {"type": "string", "name": "username", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "History"}}
            }
        },
        "/api/leaderboard": {
            "get": {
                "produces": ["application/json"],
                "summary": "Best stored score per handle",
                "parameters": [
                    {"type": "string", "enum": ["daily", "weekly", "monthly", "all_time"], "name": "period", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "Leaderboard"}}
            }
        },
        "/api/ratelimit": {
            "get": {
                "produces": ["application/json"],
                "summary": "Caller's remaining request budget",
                "responses": {"200": {"description": "Rate limit status"}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "Healthy"},
                    "503": {"description": "Degraded"}
                }
            }
        }
    },
    "definitions": {
        "AnalyzeRequest": {
            "type": "object",
            "required": ["username"],
            "properties": {
                "username": {"type": "string", "example": "octocat"},
                "resume_text": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SignalMatrix API",
	Description:      "Deterministic GitHub profile scoring with recruiter narratives.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
