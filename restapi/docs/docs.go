// Package docs holds the swagger document served at /swagger. Regenerate it with
// `swag init -g restapi/server.go -o restapi/docs --parseDependency`.
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
        "/trees/{mode}/nodes/{id}": {
            "get": {
                "security": [{"Bearer": []}],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "GetNode returns a node, optionally with its descendants.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"type": "integer", "description": "node id", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "levels below the node", "name": "depth", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/treestore.TreeNode"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "patch": {
                "security": [{"Bearer": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "UpdateNode renames a node, replaces its template or its reference.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"type": "integer", "description": "node id", "name": "id", "in": "path", "required": true},
                    {"description": "fields to change", "name": "changes", "in": "body", "required": true, "schema": {"$ref": "#/definitions/restapi.UpdateNodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/treestore.TreeNode"}}
                }
            },
            "delete": {
                "security": [{"Bearer": []}],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "RemoveNode deletes a node and, with children=true, its subtree.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"type": "integer", "description": "node id", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "remove the subtree", "name": "children", "in": "query"}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/trees/{mode}/nodes": {
            "post": {
                "security": [{"Bearer": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "CreateNode inserts a node or a path of nodes.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"description": "node to create", "name": "node", "in": "body", "required": true, "schema": {"$ref": "#/definitions/restapi.CreateNodeRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/trees/{mode}/paths": {
            "get": {
                "security": [{"Bearer": []}],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "ResolvePath returns the id of the node at a '/' separated name path.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"type": "string", "description": "name path below the root", "name": "path", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/trees/{mode}/nodes/{id}/move": {
            "put": {
                "security": [{"Bearer": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "MoveNode moves a subtree below another parent.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"type": "integer", "description": "node id", "name": "id", "in": "path", "required": true},
                    {"description": "new parent and position", "name": "destination", "in": "body", "required": true, "schema": {"$ref": "#/definitions/restapi.PlacementRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/treestore.TreeNode"}}}
            }
        },
        "/trees/{mode}/nodes/{id}/copy": {
            "put": {
                "security": [{"Bearer": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "CopyNode duplicates a subtree below another parent.",
                "parameters": [
                    {"type": "string", "description": "edit or live", "name": "mode", "in": "path", "required": true},
                    {"type": "integer", "description": "node id", "name": "id", "in": "path", "required": true},
                    {"description": "parent and position of the copy", "name": "destination", "in": "body", "required": true, "schema": {"$ref": "#/definitions/restapi.PlacementRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/trees/{mode}/nodes/{id}/activate": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["Trees"],
                "summary": "ActivateNode publishes an Edit node, with subtree=true including its descendants.",
                "parameters": [
                    {"type": "string", "description": "must be edit", "name": "mode", "in": "path", "required": true},
                    {"type": "integer", "description": "node id", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "publish the descendants too", "name": "subtree", "in": "query"}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/activate-all": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["Trees"],
                "summary": "ActivateAll replaces the Live tree with the Edit tree.",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/check": {
            "get": {
                "security": [{"Bearer": []}],
                "produces": ["application/json"],
                "tags": ["Trees"],
                "summary": "CheckTrees verifies the nested set invariants of both trees.",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/locks": {
            "get": {
                "security": [{"Bearer": []}],
                "produces": ["application/json"],
                "tags": ["Locks"],
                "summary": "ListLocks returns the unexpired locks visible to the caller.",
                "parameters": [
                    {"type": "string", "description": "loose or permanent", "name": "type", "in": "query"},
                    {"type": "integer", "description": "holder", "name": "userId", "in": "query"},
                    {"type": "string", "description": "resource substring", "name": "resource", "in": "query"},
                    {"type": "string", "description": "CEL filter", "name": "expression", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/lock.Lock"}}}}
            },
            "post": {
                "security": [{"Bearer": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Locks"],
                "summary": "AcquireLock locks a content item or a resource for the caller.",
                "parameters": [
                    {"description": "target and type", "name": "lock", "in": "body", "required": true, "schema": {"$ref": "#/definitions/restapi.LockRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/lock.Lock"}}}
            },
            "delete": {
                "security": [{"Bearer": []}],
                "consumes": ["application/json"],
                "tags": ["Locks"],
                "summary": "ReleaseLock removes the caller's lock on a target.",
                "parameters": [
                    {"description": "target", "name": "lock", "in": "body", "required": true, "schema": {"$ref": "#/definitions/restapi.LockRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        }
    },
    "definitions": {
        "treestore.PK": {
            "type": "object",
            "properties": {"id": {"type": "integer"}, "version": {"type": "integer"}}
        },
        "treestore.TreeNode": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "parentId": {"type": "integer"},
                "mode": {"type": "integer"},
                "left": {"type": "string"},
                "right": {"type": "string"},
                "depth": {"type": "integer"},
                "directChildCount": {"type": "integer"},
                "totalChildCount": {"type": "integer"},
                "reference": {"type": "integer"},
                "name": {"type": "string"},
                "dirty": {"type": "boolean"},
                "template": {"type": "string"},
                "modifiedAt": {"type": "integer"},
                "position": {"type": "integer"},
                "children": {"type": "array", "items": {"$ref": "#/definitions/treestore.TreeNode"}}
            }
        },
        "lock.Target": {
            "type": "object",
            "properties": {"pk": {"$ref": "#/definitions/treestore.PK"}, "resource": {"type": "string"}, "content": {"type": "boolean"}}
        },
        "lock.Lock": {
            "type": "object",
            "properties": {
                "type": {"type": "integer"},
                "target": {"$ref": "#/definitions/lock.Target"},
                "userId": {"type": "integer"},
                "createdAt": {"type": "integer"},
                "expiresAt": {"type": "integer"}
            }
        },
        "restapi.CreateNodeRequest": {
            "type": "object",
            "properties": {
                "parentId": {"type": "integer"},
                "name": {"type": "string"},
                "position": {"type": "integer"},
                "reference": {"type": "integer"},
                "template": {"type": "string"},
                "path": {"type": "string"}
            }
        },
        "restapi.UpdateNodeRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}, "template": {"type": "string"}, "reference": {"type": "integer"}}
        },
        "restapi.PlacementRequest": {
            "type": "object",
            "required": ["parentId"],
            "properties": {"parentId": {"type": "integer"}, "position": {"type": "integer"}}
        },
        "restapi.LockRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "pk": {"$ref": "#/definitions/treestore.PK"},
                "resource": {"type": "string"},
                "seconds": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "Bearer": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "treestore API",
	Description:      "Edit and Live nested set trees with advisory locks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
