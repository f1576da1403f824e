package handlers

import (
	"document-access-service/internal/config"
	"document-access-service/internal/models"
	"document-access-service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var revocationOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "document_access_revocation_requests_total",
		Help: "Total number of revocation workflow outcomes",
	},
	[]string{"outcome"}, // outcome: created/approved/denied/cancelled
)

type RevocationHandler struct {
	revocationService *service.RevocationService
}

func NewRevocationHandler(revocationService *service.RevocationService) *RevocationHandler {
	return &RevocationHandler{
		revocationService: revocationService,
	}
}

func (h *RevocationHandler) RegisterRoutes(app *fiber.App) {
	requestGroup := app.Group("/protected/revocation-requests")

	requestGroup.Post("/", h.CreateRequest)
	requestGroup.Get("/", h.ListRequests)
	requestGroup.Get("/:id", h.GetRequest)
	requestGroup.Patch("/:id/approve", h.ApproveRequest)
	requestGroup.Patch("/:id/deny", h.DenyRequest)
	requestGroup.Delete("/:id", h.CancelRequest)
}

func (h *RevocationHandler) CreateRequest(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var request models.CreateRevocationRequestRequest
	if err := c.Bind().Body(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	documentID, err := bson.ObjectIDFromHex(request.DocumentID)
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	var targetID bson.ObjectID
	if request.TargetSubjectID != "" {
		targetID, err = bson.ObjectIDFromHex(request.TargetSubjectID)
		if err != nil {
			return badRequest(c, "Invalid target subject ID format")
		}
	}

	created, err := h.revocationService.CreateRequest(
		c.Context(),
		documentID,
		request.RequestType,
		request.TargetSubjectType,
		targetID,
		request.CascadeToSecondaryManagers,
		actor,
	)
	if err != nil {
		return respondError(c, err)
	}
	revocationOutcomes.WithLabelValues("created").Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Revocation request created successfully",
		"data":    created,
	})
}

func (h *RevocationHandler) ListRequests(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	filter := models.RevocationRequestFilter{
		Status:      models.RequestStatus(c.Query("status")),
		RequestType: models.RequestType(c.Query("requestType")),
		Page:        fiber.Query(c, "page", 1),
		Limit:       fiber.Query(c, "limit", config.ServiceConfig.DefaultPageSize),
	}
	if filter.Limit > config.ServiceConfig.MaxPageSize {
		filter.Limit = config.ServiceConfig.MaxPageSize
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return badRequest(c, "Invalid status filter")
	}
	if filter.RequestType != "" && !filter.RequestType.Valid() {
		return badRequest(c, "Invalid request type filter")
	}

	if documentIDStr := c.Query("documentId"); documentIDStr != "" {
		documentID, err := bson.ObjectIDFromHex(documentIDStr)
		if err != nil {
			return badRequest(c, "Invalid document ID format")
		}
		filter.DocumentID = documentID
	}

	requests, err := h.revocationService.ListRequests(c.Context(), filter, actor)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": requests,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.Limit,
		},
	})
}

func (h *RevocationHandler) GetRequest(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	requestID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid request ID format")
	}

	request, err := h.revocationService.GetRequest(c.Context(), requestID, actor)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": request,
	})
}

func (h *RevocationHandler) ApproveRequest(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	requestID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid request ID format")
	}

	var body models.ReviewRevocationRequestRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	updated, err := h.revocationService.ApproveRequest(c.Context(), requestID, body.ReviewNotes, actor)
	if err != nil {
		return respondError(c, err)
	}
	revocationOutcomes.WithLabelValues("approved").Inc()

	return c.JSON(fiber.Map{
		"message": "Revocation request approved",
		"data":    updated,
	})
}

func (h *RevocationHandler) DenyRequest(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	requestID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid request ID format")
	}

	var body models.ReviewRevocationRequestRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	updated, err := h.revocationService.DenyRequest(c.Context(), requestID, body.ReviewNotes, actor)
	if err != nil {
		return respondError(c, err)
	}
	revocationOutcomes.WithLabelValues("denied").Inc()

	return c.JSON(fiber.Map{
		"message": "Revocation request denied",
		"data":    updated,
	})
}

func (h *RevocationHandler) CancelRequest(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	requestID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid request ID format")
	}

	if _, err := h.revocationService.CancelRequest(c.Context(), requestID, actor); err != nil {
		return respondError(c, err)
	}
	revocationOutcomes.WithLabelValues("cancelled").Inc()

	return c.SendStatus(fiber.StatusNoContent)
}
