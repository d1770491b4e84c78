package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Practicum Assessment API",
        "description": "Grade aggregation, batch adjustment, CSV ledgers and the submission review workflow for practicum courses.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Grades", "description": "Weighted grades, cohort summaries and ledgers"},
        {"name": "Submissions", "description": "Proposal and enrollment review workflow"},
        {"name": "Reports", "description": "Asynchronous grade sheets"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/grades/compute": {
            "post": {
                "tags": ["Grades"],
                "summary": "Compute grade figures for an unsaved record",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ComputeGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid component", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/summary": {
            "get": {
                "tags": ["Grades"],
                "summary": "Cohort grade summary",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "section", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/batch": {
            "post": {
                "tags": ["Grades"],
                "summary": "Adjust one component across a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Actor-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchAdjustRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/ledger": {
            "get": {
                "tags": ["Grades"],
                "summary": "Download the grade ledger as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "section", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV ledger"}
                }
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Upload a CSV grade ledger",
                "consumes": ["text/csv"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Actor-ID", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Imported", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed line", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/records/{recordId}/attendance": {
            "post": {
                "tags": ["Grades"],
                "summary": "Record a practicum session",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "recordId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/records/{recordId}/requirements/{requirementId}": {
            "patch": {
                "tags": ["Grades"],
                "summary": "Mark a requirement item complete or incomplete",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "recordId", "in": "path", "required": true, "type": "string"},
                    {"name": "requirementId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RequirementUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List submissions",
                "parameters": [
                    {"name": "kind", "in": "query", "type": "string", "enum": ["location_proposal", "team_proposal", "enrollment"]},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "submittedBy", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Open a submission for review",
                "parameters": [
                    {"name": "X-Actor-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Actor missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get a submission with its history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/actions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Events the submission accepts next",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/transitions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Apply a workflow event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Actor-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Actor missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition or concurrent review", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Feedback required or unknown event", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/history": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Transition audit trail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a cohort grade sheet",
                "parameters": [
                    {"name": "X-Actor-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Grade sheet job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished grade sheet",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Grade sheet purged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not ready", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["System"],
                "summary": "Aggregated runtime and engine counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GradeComponent": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "score": {"type": "number"},
                "maxScore": {"type": "number"},
                "weight": {"type": "number"}
            }
        },
        "ComputeGradeRequest": {
            "type": "object",
            "properties": {
                "components": {"type": "array", "items": {"$ref": "#/definitions/GradeComponent"}},
                "attendance": {"type": "array", "items": {"$ref": "#/definitions/AttendanceRequest"}},
                "requirements": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "id": {"type": "string"},
                            "name": {"type": "string"},
                            "completed": {"type": "boolean"}
                        }
                    }
                }
            }
        },
        "BatchAdjustRequest": {
            "type": "object",
            "properties": {
                "component": {"type": "string"},
                "op": {"type": "string", "enum": ["add", "subtract", "set"]},
                "value": {"type": "number"},
                "section": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["component", "op", "value"]
        },
        "AttendanceRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "2024-03-01"},
                "status": {"type": "string", "enum": ["present", "late", "excused", "absent"]},
                "notes": {"type": "string"}
            },
            "required": ["date", "status"]
        },
        "RequirementUpdateRequest": {
            "type": "object",
            "properties": {
                "completed": {"type": "boolean"}
            },
            "required": ["completed"]
        },
        "CreateSubmissionRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["location_proposal", "team_proposal", "enrollment"]},
                "referenceId": {"type": "string"},
                "title": {"type": "string"}
            },
            "required": ["kind", "referenceId", "title"]
        },
        "TransitionRequest": {
            "type": "object",
            "properties": {
                "event": {"type": "string", "enum": ["approve", "reject", "request_revision", "start", "complete"]},
                "feedback": {"type": "string"}
            },
            "required": ["event"]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "courseId": {"type": "string"},
                "section": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["courseId", "format"]
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
