package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StudyFlow Scheduler API",
        "description": "Study-session scheduling engine: availability, allocation, conflicts and adaptive rescheduling.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Plans", "description": "Study plan envelopes and locked blocks"},
        {"name": "Scheduler", "description": "Allocation, rescheduling and missed-session handling"},
        {"name": "Conflicts", "description": "Overlap detection and resolution"},
        {"name": "Observability", "description": "Runtime counters"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/plans": {
            "get": {
                "tags": ["Plans"],
                "summary": "List the caller's study plans",
                "parameters": [
                    {"name": "ownerId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Plans"],
                "summary": "Create a study plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{id}": {
            "get": {
                "tags": ["Plans"],
                "summary": "Get a study plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Plans"],
                "summary": "Delete a study plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/plans/{id}/blocks": {
            "get": {
                "tags": ["Plans"],
                "summary": "List a plan's locked blocks",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Plans"],
                "summary": "Attach a locked block to a plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LockedBlock"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{id}/blocks/{blockId}": {
            "delete": {
                "tags": ["Plans"],
                "summary": "Delete a locked block",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "blockId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/plans/{id}/allocate": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Build the session schedule for a plan",
                "description": "Replaces all pending sessions with a fresh allocation. Topic payloads carrying unknown fields are rejected.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stale plan version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{id}/sessions": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "List a plan's sessions in chronological order",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{id}/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "List a plan's conflicts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["DETECTED", "AUTO_RESOLVED", "USER_RESOLVED", "ACCEPTED"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{id}/export": {
            "get": {
                "tags": ["Plans"],
                "summary": "Export a plan's schedule as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/sessions/{id}/reschedule": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Move a session to a new start time",
                "description": "Moves into locked blocks or off-hours time are rejected; overlaps with other sessions persist and are returned as conflicts.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stale plan version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/handle-missed": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Mark a session missed and redistribute its effort",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/{id}/resolve": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Automatically resolve a detected conflict",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unresolvable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/{id}/accept": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Accept a detected conflict as-is",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Scheduler counters as a JSON snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreatePlanRequest": {
            "type": "object",
            "properties": {
                "ownerId": {"type": "string"},
                "title": {"type": "string"},
                "startDate": {"type": "string", "format": "date-time"},
                "endDate": {"type": "string", "format": "date-time"},
                "dailyBudgetMinutes": {"type": "integer"},
                "preferredWindows": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/PreferredWindow"}
                },
                "examDate": {"type": "string", "format": "date-time"},
                "maxSessionsPerDay": {"type": "integer"},
                "maxHardSessionsPerDay": {"type": "integer"}
            },
            "required": ["title", "startDate", "endDate", "dailyBudgetMinutes"]
        },
        "PreferredWindow": {
            "type": "object",
            "properties": {
                "label": {"type": "string", "enum": ["morning", "afternoon", "evening"]},
                "startMinute": {"type": "integer"},
                "endMinute": {"type": "integer"}
            }
        },
        "LockedBlock": {
            "type": "object",
            "properties": {
                "weekday": {"type": "integer", "minimum": 0, "maximum": 6},
                "date": {"type": "string", "format": "date-time"},
                "start_minute": {"type": "integer"},
                "end_minute": {"type": "integer"},
                "label": {"type": "string"}
            },
            "required": ["start_minute", "end_minute"]
        },
        "TopicInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "estimatedMinutes": {"type": "integer"},
                "difficulty": {"type": "string", "enum": ["EASY", "MEDIUM", "HARD"]},
                "priority": {"type": "integer"},
                "dependsOn": {"type": "array", "items": {"type": "string"}},
                "deadline": {"type": "string", "format": "date-time"}
            },
            "required": ["id", "name", "estimatedMinutes", "difficulty", "priority"]
        },
        "AllocateRequest": {
            "type": "object",
            "properties": {
                "planVersion": {"type": "integer"},
                "topics": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/TopicInput"}
                }
            },
            "required": ["topics"]
        },
        "RescheduleRequest": {
            "type": "object",
            "properties": {
                "planVersion": {"type": "integer"},
                "newStart": {"type": "string", "format": "date-time"}
            },
            "required": ["newStart"]
        },
        "Session": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "plan_id": {"type": "string"},
                "topic_id": {"type": "string"},
                "title": {"type": "string"},
                "start_at": {"type": "string", "format": "date-time"},
                "end_at": {"type": "string", "format": "date-time"},
                "difficulty": {"type": "string", "enum": ["EASY", "MEDIUM", "HARD"]},
                "priority": {"type": "integer"},
                "status": {"type": "string", "enum": ["PENDING", "IN_PROGRESS", "COMPLETED", "SKIPPED"]},
                "earliest_start": {"type": "string", "format": "date-time"},
                "latest_start": {"type": "string", "format": "date-time"},
                "reschedule_count": {"type": "integer"}
            }
        },
        "Conflict": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "plan_id": {"type": "string"},
                "session_a_id": {"type": "string"},
                "session_b_id": {"type": "string"},
                "overlap_minutes": {"type": "integer"},
                "severity": {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH"]},
                "status": {"type": "string", "enum": ["DETECTED", "AUTO_RESOLVED", "USER_RESOLVED", "ACCEPTED"]},
                "resolution": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
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
