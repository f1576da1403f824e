package handlers

import (
	"log"

	"document-access-service/internal/models"
	"document-access-service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	grantOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_access_grant_operations_total",
			Help: "Total number of grant operations",
		},
		[]string{"operation", "status"}, // operation: grant/revoke, status: success/failure
	)

	accessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_access_checks_total",
			Help: "Total number of access checks",
		},
		[]string{"result"}, // result: granted/denied
	)
)

type DocumentHandler struct {
	authorityService *service.AuthorityService
	grantService     *service.GrantService
}

func NewDocumentHandler(authorityService *service.AuthorityService, grantService *service.GrantService) *DocumentHandler {
	return &DocumentHandler{
		authorityService: authorityService,
		grantService:     grantService,
	}
}

func (h *DocumentHandler) RegisterRoutes(app *fiber.App) {
	documentGroup := app.Group("/protected/documents")

	documentGroup.Post("/", h.RegisterDocument)
	documentGroup.Get("/:id", h.GetDocument)
	documentGroup.Patch("/:id/manager", h.AssignManager)
	documentGroup.Post("/:id/grants", h.CreateGrant)
	documentGroup.Delete("/:id/grants", h.RevokeGrant)
	documentGroup.Get("/:id/grants", h.ListGrants)
	documentGroup.Get("/:id/access", h.CheckAccess)
}

func (h *DocumentHandler) RegisterDocument(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var request models.RegisterDocumentRequest
	if err := c.Bind().Body(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if request.Title == "" {
		return badRequest(c, "Document title is required")
	}

	document, err := h.authorityService.RegisterDocument(c.Context(), request.Title, actor)
	if err != nil {
		return respondError(c, err)
	}

	log.Printf("Actor %s:%s registered document %s", actor.Kind, actor.ID.Hex(), document.ID.Hex())

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Document registered successfully",
		"data":    document,
	})
}

func (h *DocumentHandler) GetDocument(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	documentID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	document, err := h.grantService.GetDocument(c.Context(), documentID, actor)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": document,
	})
}

func (h *DocumentHandler) AssignManager(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	documentID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	var request models.AssignManagerRequest
	if err := c.Bind().Body(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	managerID, err := bson.ObjectIDFromHex(request.ManagerID)
	if err != nil {
		return badRequest(c, "Invalid manager ID format")
	}

	document, err := h.authorityService.AssignManager(c.Context(), documentID, managerID, actor)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Origin manager assigned successfully",
		"data":    document,
	})
}

func (h *DocumentHandler) CreateGrant(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	documentID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	var request models.CreateGrantRequest
	if err := c.Bind().Body(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	subjectID, err := bson.ObjectIDFromHex(request.SubjectID)
	if err != nil {
		return badRequest(c, "Invalid subject ID format")
	}

	grant, err := h.grantService.Grant(c.Context(), documentID, request.SubjectType, subjectID, request.GrantType, actor)
	if err != nil {
		grantOperations.WithLabelValues("grant", "failure").Inc()
		return respondError(c, err)
	}
	grantOperations.WithLabelValues("grant", "success").Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Access granted successfully",
		"data":    grant,
	})
}

func (h *DocumentHandler) RevokeGrant(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	documentID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	var request models.RevokeGrantRequest
	if err := c.Bind().Body(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	subjectID, err := bson.ObjectIDFromHex(request.SubjectID)
	if err != nil {
		return badRequest(c, "Invalid subject ID format")
	}

	err = h.grantService.Revoke(c.Context(), documentID, request.SubjectType, subjectID, request.Cascade, actor)
	if err != nil {
		grantOperations.WithLabelValues("revoke", "failure").Inc()
		return respondError(c, err)
	}
	grantOperations.WithLabelValues("revoke", "success").Inc()

	return c.JSON(fiber.Map{
		"message": "Access revoked successfully",
	})
}

func (h *DocumentHandler) ListGrants(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	documentID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	page := fiber.Query(c, "page", 1)
	limit := fiber.Query(c, "limit", 10)

	grants, err := h.grantService.ListGrants(c.Context(), documentID, actor, page, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": grants,
	})
}

func (h *DocumentHandler) CheckAccess(c fiber.Ctx) error {
	actor, err := ActorFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	documentID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID format")
	}

	subjectType := models.SubjectType(c.Query("subjectType"))
	subjectIDStr := c.Query("subjectId")

	var hasAccess bool
	if subjectType != "" || subjectIDStr != "" {
		// Checking on behalf of another subject requires access yourself.
		if _, err := h.grantService.GetDocument(c.Context(), documentID, actor); err != nil {
			return respondError(c, err)
		}

		if !subjectType.Valid() {
			return badRequest(c, "Invalid subject type")
		}
		subjectID, err := bson.ObjectIDFromHex(subjectIDStr)
		if err != nil {
			return badRequest(c, "Invalid subject ID format")
		}

		hasAccess, err = h.grantService.HasAccess(c.Context(), documentID, subjectType, subjectID)
		if err != nil {
			return respondError(c, err)
		}
	} else {
		hasAccess, err = h.grantService.HasAccessActor(c.Context(), documentID, actor)
		if err != nil {
			return respondError(c, err)
		}
	}

	if hasAccess {
		accessChecks.WithLabelValues("granted").Inc()
	} else {
		accessChecks.WithLabelValues("denied").Inc()
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"hasAccess": hasAccess,
		},
	})
}
