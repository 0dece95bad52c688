package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Loan Query API",
        "description": "Query approval workflow and per-query chat for loan operations dashboards.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Queries", "description": "Operations dashboard queries"},
        {"name": "Sales", "description": "Sales dashboard"},
        {"name": "Chat", "description": "Per-query chat threads"},
        {"name": "Chat Archives", "description": "Chat snapshots of closed queries"},
        {"name": "Approvals", "description": "Approver dashboard and administrative reset"},
        {"name": "Workflows", "description": "Approval routing rules"},
        {"name": "Realtime", "description": "Push channels"}
    ],
    "paths": {
        "/queries": {
            "get": {
                "tags": ["Queries"],
                "summary": "List queries",
                "parameters": [
                    {"name": "team", "in": "query", "type": "string", "enum": ["sales", "credit", "both", "operations"]},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "appNo", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "post": {
                "tags": ["Queries"],
                "summary": "Raise a query",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateQueryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/queries/{queryId}": {
            "get": {
                "tags": ["Queries"],
                "summary": "Query detail",
                "parameters": [{"name": "queryId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/queries/{queryId}/propose": {
            "post": {
                "tags": ["Queries"],
                "summary": "Propose an action for approval",
                "parameters": [
                    {"name": "queryId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProposeActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid state", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/queries/{queryId}/revert": {
            "post": {
                "tags": ["Queries"],
                "summary": "Revert a deferred or OTC query to pending",
                "parameters": [
                    {"name": "queryId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RemarkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/queries/{queryId}/resolve": {
            "post": {
                "tags": ["Queries"],
                "summary": "Resolve a pending query",
                "parameters": [
                    {"name": "queryId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RemarkRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/queries/{queryId}/chat": {
            "get": {
                "tags": ["Chat"],
                "summary": "Chat thread of a query",
                "parameters": [{"name": "queryId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "post": {
                "tags": ["Chat"],
                "summary": "Append a chat message",
                "parameters": [
                    {"name": "queryId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PostChatMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "200": {"description": "Duplicate of a recent message", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/queries/sales": {
            "get": {
                "tags": ["Sales"],
                "summary": "Queries routed to sales",
                "parameters": [{"name": "status", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "patch": {
                "tags": ["Sales"],
                "summary": "Propose a sales decision",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SalesActionRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/chat-archives": {
            "get": {
                "tags": ["Chat Archives"],
                "summary": "List chat archives",
                "parameters": [
                    {"name": "appNo", "in": "query", "type": "string"},
                    {"name": "customerName", "in": "query", "type": "string"},
                    {"name": "markedForTeam", "in": "query", "type": "string"},
                    {"name": "archiveReason", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "post": {
                "tags": ["Chat Archives"],
                "summary": "Archive a chat thread manually",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArchiveChatRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "delete": {
                "tags": ["Chat Archives"],
                "summary": "Clear chat archives (retained, reports cleared=false)",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/approvals": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List approval requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "approved", "rejected"]},
                    {"name": "queryId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve or reject approval requests",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkApprovalRequest"}}
                ],
                "responses": {"200": {"description": "Per-request results", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/clear-approvals": {
            "delete": {
                "tags": ["Approvals"],
                "summary": "Delete every approval request",
                "parameters": [
                    {"name": "confirm", "in": "query", "type": "boolean"},
                    {"name": "X-Reset-Key", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "403": {"description": "Reset not allowed", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Approvals"],
                "summary": "Delete approval requests matching criteria",
                "parameters": [
                    {"name": "X-Reset-Key", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClearApprovalsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/workflows": {
            "get": {
                "tags": ["Workflows"],
                "summary": "List workflow rules",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "post": {
                "tags": ["Workflows"],
                "summary": "Create a workflow rule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateWorkflowRuleRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/events": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Server-sent workflow events",
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "Event stream"}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["Realtime"],
                "summary": "WebSocket workflow events",
                "responses": {"101": {"description": "Switching protocols"}}
            }
        }
    },
    "definitions": {
        "Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {"type": "string"},
                "code": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "CreateQueryRequest": {
            "type": "object",
            "required": ["appNo", "customerName", "queryText", "markedForTeam"],
            "properties": {
                "appNo": {"type": "string"},
                "customerName": {"type": "string"},
                "branch": {"type": "string"},
                "queryText": {"type": "string"},
                "markedForTeam": {"type": "string", "enum": ["sales", "credit", "both", "operations"]},
                "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
                "createdBy": {"type": "string"}
            }
        },
        "ProposeActionRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["approve", "defer", "deferral", "otc"]},
                "remarks": {"type": "string"},
                "actor": {"type": "string"},
                "team": {"type": "string"}
            }
        },
        "SalesActionRequest": {
            "type": "object",
            "required": ["queryId", "action"],
            "properties": {
                "queryId": {"type": "string"},
                "action": {"type": "string", "enum": ["approve", "defer", "otc"]},
                "remarks": {"type": "string"},
                "assignTo": {"type": "string"},
                "actor": {"type": "string"}
            }
        },
        "RemarkRequest": {
            "type": "object",
            "properties": {
                "remarks": {"type": "string"},
                "actor": {"type": "string"}
            }
        },
        "PostChatMessageRequest": {
            "type": "object",
            "required": ["message", "sender", "senderRole"],
            "properties": {
                "message": {"type": "string"},
                "sender": {"type": "string"},
                "senderRole": {"type": "string"},
                "team": {"type": "string"}
            }
        },
        "ArchiveChatRequest": {
            "type": "object",
            "required": ["queryId"],
            "properties": {
                "queryId": {"type": "string"},
                "reason": {"type": "string"},
                "archivedBy": {"type": "string"}
            }
        },
        "BulkApprovalRequest": {
            "type": "object",
            "required": ["action", "requestIds"],
            "properties": {
                "action": {"type": "string", "enum": ["approve", "reject"]},
                "requestIds": {"type": "array", "items": {"type": "string"}},
                "comment": {"type": "string"},
                "approverName": {"type": "string"}
            }
        },
        "ClearApprovalsRequest": {
            "type": "object",
            "properties": {
                "confirm": {"type": "boolean"},
                "criteria": {
                    "type": "object",
                    "properties": {
                        "queryId": {"type": "string"},
                        "statuses": {"type": "array", "items": {"type": "string"}},
                        "requestedBy": {"type": "string"},
                        "submittedBefore": {"type": "string", "format": "date-time"}
                    }
                }
            }
        },
        "CreateWorkflowRuleRequest": {
            "type": "object",
            "required": ["name", "approvers"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "triggers": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "field": {"type": "string"},
                            "operator": {"type": "string", "enum": ["equals", "not_equals", "contains", "in"]},
                            "value": {"type": "string"}
                        }
                    }
                },
                "approvers": {"type": "array", "items": {"type": "string"}},
                "slaHours": {"type": "integer"},
                "priority": {"type": "string"},
                "active": {"type": "boolean"},
                "position": {"type": "integer"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
