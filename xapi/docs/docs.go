// Package docs swagger 文档
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
        "/health": {
            "get": {
                "summary": "健康检查",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/pipelines": {
            "get": {
                "summary": "已注册的流水线",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/xapi.PipelineInfo"}}}
                }
            }
        },
        "/v1/pipelines/{name}/run": {
            "post": {
                "summary": "执行流水线",
                "consumes": ["multipart/form-data", "application/json", "audio/wav", "image/png", "image/jpeg", "text/plain"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "流水线名", "name": "name", "in": "path", "required": true},
                    {"type": "file", "description": "音频(wav)或图片", "name": "file", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xapi.RunResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/xapi.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/xapi.ErrorResponse"}},
                    "422": {"description": "ContractMismatch", "schema": {"$ref": "#/definitions/xapi.RunResponse"}},
                    "502": {"description": "InferenceFailure", "schema": {"$ref": "#/definitions/xapi.RunResponse"}},
                    "503": {"description": "ModelUnavailable", "schema": {"$ref": "#/definitions/xapi.RunResponse"}},
                    "504": {"description": "Timeout", "schema": {"$ref": "#/definitions/xapi.RunResponse"}}
                }
            }
        }
    },
    "definitions": {
        "xapi.PipelineInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "input": {"type": "string"},
                "stages": {"type": "array", "items": {"type": "string"}}
            }
        },
        "xapi.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "string"}
            }
        },
        "xapi.RunError": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "step": {"type": "string"},
                "phase": {"type": "string"},
                "kind": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "xmedia.Label": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "confidence": {"type": "number"}
            }
        },
        "xapi.RunResponse": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "pipeline": {"type": "string"},
                "state": {"type": "string"},
                "output_kind": {"type": "string"},
                "labels": {"type": "array", "items": {"$ref": "#/definitions/xmedia.Label"}},
                "text": {"type": "string"},
                "error": {"$ref": "#/definitions/xapi.RunError"},
                "duration_ms": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo Host/Title 等在启动时由 XGin.Swagger 配置填充
var SwaggerInfo = &swag.Spec{
	Version:          "",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "XInfer",
	Description:      "",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
