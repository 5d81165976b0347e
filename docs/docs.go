// Package docs registers the API description served by gin-swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/inbox": {
            "get": {"tags": ["收件箱"], "summary": "收件箱列表（含已读状态）", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["收件箱"], "summary": "标记消息已读，重复调用保持首次时间", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "503": {"description": "Retry"}}}
        },
        "/inbox/unread-count": {
            "get": {"tags": ["收件箱"], "summary": "未读消息数量", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/inbox/read-all": {
            "post": {"tags": ["收件箱"], "summary": "全部标记已读", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/checklist": {
            "get": {"tags": ["清单"], "summary": "清单（含完成状态）", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["清单"], "summary": "设置条目完成状态", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "503": {"description": "Retry"}}}
        },
        "/checklist/incomplete-count": {
            "get": {"tags": ["清单"], "summary": "未完成条目数量", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Club Overlay API",
	Description:      "Per-user read and completion state over shared inbox messages and checklist items.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
