//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"net/http"
)

// OpenAPISpec represents the OpenAPI v3 specification.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get  *OpenAPIOperation `json:"get,omitempty"`
	Post *OpenAPIOperation `json:"post,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter describes a parameter.
type OpenAPIParameter struct {
	Name        string        `json:"name"`
	In          string        `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Schema      OpenAPISchema `json:"schema"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /v1/openapi.json endpoint.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	spec := BuildOpenAPISpec()
	s.respondJSON(w, http.StatusOK, spec)
}

// jsonBody refers to a component schema as an application/json body.
func jsonBody(schema string) map[string]OpenAPIMediaType {
	return map[string]OpenAPIMediaType{
		"application/json": {
			Schema: OpenAPISchema{Ref: "#/components/schemas/" + schema},
		},
	}
}

// BuildOpenAPISpec constructs the OpenAPI v3 specification.
// This is exported so it can be used to generate static documentation.
func BuildOpenAPISpec() OpenAPISpec {
	errorResponse := func(description string) OpenAPIResponse {
		return OpenAPIResponse{Description: description, Content: jsonBody("ErrorResponse")}
	}
	str := func(description string) OpenAPISchema {
		return OpenAPISchema{Type: "string", Description: description}
	}
	strList := func(description string) OpenAPISchema {
		return OpenAPISchema{Type: "array", Description: description, Items: &OpenAPISchema{Type: "string"}}
	}
	boolean := func(description string) OpenAPISchema {
		return OpenAPISchema{Type: "boolean", Description: description}
	}
	number := func(description string) OpenAPISchema {
		return OpenAPISchema{Type: "number", Format: "double", Description: description}
	}

	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "pgEdge Ticket Router API",
			Description: "REST API for answering or escalating support tickets",
			Version:     "1.0.0",
		},
		Servers: []OpenAPIServer{
			{
				URL:         "/v1",
				Description: "API v1",
			},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Report server health and the circuit breaker state of each model dependency",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": {Description: "Server is running", Content: jsonBody("HealthResponse")},
					},
				},
			},
			"/tickets": {
				Post: &OpenAPIOperation{
					Summary: "Process ticket",
					Description: "Run a ticket through precheck, analysis, retrieval, evaluation and " +
						"composition. The outcome is answered, rejected, escalated or errored.",
					OperationID: "processTicket",
					Tags:        []string{"Tickets"},
					RequestBody: &OpenAPIRequestBody{
						Description: "Ticket content",
						Required:    true,
						Content:     jsonBody("TicketRequest"),
					},
					Responses: map[string]OpenAPIResponse{
						"200": {Description: "Routing result", Content: jsonBody("TicketResult")},
						"400": errorResponse("Invalid request"),
					},
				},
			},
			"/ratings": {
				Post: &OpenAPIOperation{
					Summary:     "Rate answer",
					Description: "Record a 1 to 5 star rating. Ratings of 2 or less escalate the ticket.",
					OperationID: "rateAnswer",
					Tags:        []string{"Tickets"},
					RequestBody: &OpenAPIRequestBody{
						Description: "Rating with the analysis and precheck of the rated ticket",
						Required:    true,
						Content:     jsonBody("RatingRequest"),
					},
					Responses: map[string]OpenAPIResponse{
						"200": {Description: "Rating handled", Content: jsonBody("RatingResponse")},
						"400": errorResponse("Invalid request or star count"),
						"500": errorResponse("Server error"),
					},
				},
			},
		},
		Components: OpenAPIComponents{
			Schemas: map[string]OpenAPISchema{
				"HealthResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"status": str("healthy, or degraded while a breaker is not closed"),
						"dependencies": {
							Type:        "object",
							Description: "Breaker state per dependency (closed, half-open or open)",
						},
					},
					Required: []string{"status"},
				},
				"TicketRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"content": str("Raw ticket text"),
					},
					Required: []string{"content"},
				},
				"Precheck": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"passed_language_check": boolean("Language is accepted"),
						"is_spam":               boolean("Ticket matched spam keywords"),
						"has_sensitive_data":    boolean("Secrets or personal data were masked"),
						"masked_content":        str("Ticket text with sensitive data replaced"),
						"rejection_reasons":     strList("Reasons in check order"),
						"passed":                boolean("Ticket may continue"),
					},
				},
				"Analysis": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"summary":         str("One sentence summary"),
						"keywords":        strList("Lower-case keywords"),
						"category":        str("Configured category, empty when unknown"),
						"is_in_scope":     boolean("Request belongs to the supported domain"),
						"is_sufficient":   boolean("Request carries enough detail"),
						"optimized_query": str("Query used for retrieval"),
						"degraded":        boolean("Analysis model was unavailable"),
					},
				},
				"Evaluation": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"faithfulness":    number("Answer supported by context, 0 to 1"),
						"relevance":       number("Answer addresses the query, 0 to 1"),
						"retrieval_score": number("Best evidence similarity, 0 to 1"),
						"sentiment":       str("positive, neutral or negative"),
						"is_refusal":      boolean("Answer declines to help"),
						"confidence":      number("Weighted confidence, 0 to 1"),
						"passed":          boolean("Confidence meets the threshold"),
						"reason":          str("Why evaluation short-circuited"),
					},
				},
				"Escalation": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"target_department": str("Department taking over"),
						"summary":           str("Summary for the specialist"),
						"keywords":          strList("Keywords for the specialist"),
						"reason":            str("Why the ticket was escalated"),
						"message":           str("Message shown to the customer"),
						"sensitive_data":    boolean("Ticket contained masked data"),
					},
				},
				"TicketResult": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"trace_id": {Type: "string", Format: "uuid", Description: "Run identifier"},
						"status":   str("answered, rejected, escalated or errored"),
						"outcome": {
							Type:        "object",
							Description: "Variant selected by status: final_response and confidence, reasons and message, an Escalation, or message",
						},
						"states":        strList("States visited in order"),
						"precheck":      {Ref: "#/components/schemas/Precheck"},
						"analysis":      {Ref: "#/components/schemas/Analysis"},
						"fallback_used": boolean("Retrieval dropped the category filter"),
						"evaluation":    {Ref: "#/components/schemas/Evaluation"},
					},
					Required: []string{"trace_id", "status", "outcome", "states", "precheck"},
				},
				"RatingRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"ticket_id": str("Identifier of the rated ticket"),
						"stars":     {Type: "integer", Description: "Rating from 1 to 5"},
						"analysis":  {Ref: "#/components/schemas/Analysis"},
						"precheck":  {Ref: "#/components/schemas/Precheck"},
					},
					Required: []string{"ticket_id", "stars"},
				},
				"RatingResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"escalated": boolean("A specialist will follow up"),
						"outcome":   {Ref: "#/components/schemas/Escalation"},
					},
					Required: []string{"escalated"},
				},
				"ErrorResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"error": {
							Ref: "#/components/schemas/ErrorDetail",
						},
					},
					Required: []string{"error"},
				},
				"ErrorDetail": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"code": {
							Type:        "string",
							Description: "Error code",
						},
						"message": {
							Type:        "string",
							Description: "Error message",
						},
					},
					Required: []string{"code", "message"},
				},
			},
		},
	}
}
